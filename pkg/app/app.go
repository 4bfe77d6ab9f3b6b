// Package app defines the runtime contract shared by the cmd/* binaries
// (relayer, devnet).
package app

// Runner represents a runnable application component.
type Runner interface {
	Run() error
}
