package profile

// IsRoot is always false on Windows; os.Geteuid has no meaning there
// and administrator-privilege detection is out of scope (Windows is
// informational-only in the system profile).
func IsRoot() bool {
	return false
}
