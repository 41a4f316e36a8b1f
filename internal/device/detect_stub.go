//go:build !linux

package device

func detectDevices() ([]Device, error) {
	return nil, ErrUnsupportedPlatform
}

func analyze(path string) (*Device, error) {
	return nil, ErrUnsupportedPlatform
}

func isPrivileged() bool {
	return false
}
