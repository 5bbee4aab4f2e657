// Package core holds the provider-independent banking contracts: canonical
// account, transaction and institution types, the Provider capability
// interface, the closed error taxonomy, the retry executor and the immutable
// provider registry. Adapters depend on core; core never imports an adapter.
package core
