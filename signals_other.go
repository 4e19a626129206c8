//go:build !unix

package framekit

import "os"

func defaultSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}
