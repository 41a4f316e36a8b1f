//go:build windows

package security

// На Windows программный путь не поддерживается; проверка прав
// всегда консервативно отрицательна.
func isAdmin() bool {
	return false
}
