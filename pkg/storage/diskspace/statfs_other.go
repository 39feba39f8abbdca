//go:build !(linux || darwin || freebsd)

package diskspace

// StatfsProbe measures usage with statfs(2).
type StatfsProbe struct{}

// Measure always fails on this platform.
func (StatfsProbe) Measure(path string) (Usage, error) {
	return Usage{}, ErrUnsupported
}
