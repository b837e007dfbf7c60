package twofactor

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"strings"
)

// backupAlphabet avoids ambiguous characters (0/O, 1/I/L).
const backupAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const backupCodeLength = 10

// BackupCode stores the SHA-256 digest of a single backup code. The
// plaintext is handed to the user once at generation and never persisted.
type BackupCode struct {
	Hash [32]byte
}

// GenerateBackupCodes returns n plaintext codes (formatted XXXXX-XXXXX) and
// their digest records. The plaintexts must be shown to the user now; only
// the records are stored.
func GenerateBackupCodes(n int) ([]string, []BackupCode, error) {
	plain := make([]string, 0, n)
	records := make([]BackupCode, 0, n)

	for i := 0; i < n; i++ {
		code, err := randomBackupCode()
		if err != nil {
			return nil, nil, err
		}
		plain = append(plain, code[:5]+"-"+code[5:])
		records = append(records, BackupCode{Hash: HashBackupCode(code)})
	}

	return plain, records, nil
}

// HashBackupCode normalizes a user-entered code (case, separators) and
// returns its digest.
func HashBackupCode(code string) [32]byte {
	normalized := strings.ToUpper(strings.NewReplacer("-", "", " ", "").Replace(code))
	return sha256.Sum256([]byte(normalized))
}

// IsBackupCodeShape reports whether the input has the length of a backup
// code once separators are stripped. The alphabet includes digits, so user
// input must be routed by length, never by character class; TOTP codes are
// 6 or 8 digits and can never collide with the 10-character backup shape.
func IsBackupCodeShape(code string) bool {
	normalized := strings.NewReplacer("-", "", " ", "").Replace(strings.TrimSpace(code))
	return len(normalized) == backupCodeLength
}

// ConsumeBackupCode checks code against the stored set. On a match it
// returns the set with that record removed and ok=true; the caller must
// persist the reduced set so the code can never authenticate again. The
// scan always visits every record.
func ConsumeBackupCode(code string, codes []BackupCode) (remaining []BackupCode, ok bool) {
	digest := HashBackupCode(code)

	matched := -1
	for i := range codes {
		if subtle.ConstantTimeCompare(digest[:], codes[i].Hash[:]) == 1 && matched < 0 {
			matched = i
		}
	}
	if matched < 0 {
		return codes, false
	}

	remaining = make([]BackupCode, 0, len(codes)-1)
	remaining = append(remaining, codes[:matched]...)
	remaining = append(remaining, codes[matched+1:]...)
	return remaining, true
}

func randomBackupCode() (string, error) {
	buf := make([]byte, backupCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = backupAlphabet[int(b)%len(backupAlphabet)]
	}
	return string(buf), nil
}
