// Package testsupport provides shared scaffolding for package tests: temp
// directory configs and deterministic test files.
package testsupport
