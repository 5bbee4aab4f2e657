// Package normalize holds the pure helpers adapters use to map native
// provider payloads into canonical values. Every lookup table in this package
// is built once at init and never written afterwards.
package normalize
