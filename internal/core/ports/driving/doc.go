// Package driving defines the interfaces external actors use to drive
// the core (primary/inbound ports). The CLI and the corpus watcher call
// these; core services implement them.
package driving
