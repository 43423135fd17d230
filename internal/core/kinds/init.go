// Package kinds registers the inventory code families and import kinds with
// the core registry. Import it for side effects wherever a Service is built.
package kinds

// Each file registers its kinds from init().
