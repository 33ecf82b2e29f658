package security

import "golang.org/x/crypto/bcrypt"

// HashAdminToken produces the bcrypt hash stored in admin.token_hash.
func HashAdminToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyAdminToken reports whether token matches the stored hash. An empty hash never matches.
func VerifyAdminToken(hash, token string) bool {
	if hash == "" || token == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) == nil
}
