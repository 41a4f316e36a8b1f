package cert

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safewipe_enterprise/internal/verify"
)

func testAuthority(t *testing.T) *Authority {
	t.Helper()
	a, err := LoadOrCreateAuthority(filepath.Join(t.TempDir(), "authority.json"), "Test Issuer", "Test Org")
	require.NoError(t, err)
	return a
}

func passedReport() *verify.Report {
	return &verify.Report{
		Samples:      100,
		QualityScore: 0.99,
		Threshold:    0.98,
		Passed:       true,
	}
}

func testRequest() Request {
	return Request{
		DeviceModel:  "Test SSD",
		DeviceSerial: "SN-123",
		DeviceSize:   1024 * 1024 * 1024,
		Category:     "purge",
		Algorithm:    "nist-purge",
		PassCount:    3,
		StartedAt:    time.Now().Add(-time.Hour),
		FinishedAt:   time.Now(),
	}
}

func TestAuthorityPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "authority.json")

	first, err := LoadOrCreateAuthority(path, "Issuer", "Org")
	require.NoError(t, err)

	// Повторная загрузка возвращает тот же ключ, а не новый
	second, err := LoadOrCreateAuthority(path, "Issuer", "Org")
	require.NoError(t, err)
	assert.Equal(t, first.PublicKey().N, second.PublicKey().N)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm(), "приватный ключ должен быть закрыт от чужих")
}

func TestIssueAndVerify(t *testing.T) {
	authority := testAuthority(t)

	proof, err := NewCompletionProof("job-1", "/dev/sdb", passedReport())
	require.NoError(t, err)

	c, err := authority.Issue(proof, testRequest())
	require.NoError(t, err)

	assert.Equal(t, "job-1", c.JobID)
	assert.Equal(t, "/dev/sdb", c.DevicePath)
	assert.True(t, c.Verified)
	assert.NotEmpty(t, c.ContentHash)
	assert.NotEmpty(t, c.Signature)

	require.NoError(t, c.Verify(authority.PublicKey()))
}

func TestCertificateJSONFieldNames(t *testing.T) {
	authority := testAuthority(t)

	proof, err := NewCompletionProof("job-1", "/dev/sdb", passedReport())
	require.NoError(t, err)

	c, err := authority.Issue(proof, testRequest())
	require.NoError(t, err)

	data, err := json.Marshal(c)
	require.NoError(t, err)

	var keys map[string]any
	require.NoError(t, json.Unmarshal(data, &keys))

	// Внешние потребители разбирают сертификат по именам полей
	assert.Equal(t, "purge", keys["method"])
	assert.NotContains(t, keys, "category")
	for _, name := range []string{
		"job_id", "device_path", "device_serial", "algorithm",
		"pass_count", "verification_quality_score", "verification_passed",
		"content_hash", "signature",
	} {
		assert.Contains(t, keys, name)
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	authority := testAuthority(t)

	proof, err := NewCompletionProof("job-1", "/dev/sdb", passedReport())
	require.NoError(t, err)
	c, err := authority.Issue(proof, testRequest())
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Certificate)
	}{
		{"подмена устройства", func(c *Certificate) { c.DevicePath = "/dev/sdc" }},
		{"подмена модели", func(c *Certificate) { c.DeviceModel = "Other" }},
		{"подмена качества", func(c *Certificate) { c.Quality = 1.0 }},
		{"подмена алгоритма", func(c *Certificate) { c.Algorithm = "nist-clear" }},
		{"подмена времени выдачи", func(c *Certificate) { c.IssuedAt = c.IssuedAt.Add(time.Hour) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tampered := *c
			tt.mutate(&tampered)
			assert.Error(t, tampered.Verify(authority.PublicKey()))
		})
	}
}

func TestVerifyRejectsForeignKey(t *testing.T) {
	authority := testAuthority(t)
	other := testAuthority(t)

	proof, err := NewCompletionProof("job-1", "/dev/sdb", passedReport())
	require.NoError(t, err)
	c, err := authority.Issue(proof, testRequest())
	require.NoError(t, err)

	assert.ErrorIs(t, c.Verify(other.PublicKey()), ErrInvalidSignature)
}

func TestProofRequiresPassedVerification(t *testing.T) {
	failed := passedReport()
	failed.Passed = false

	_, err := NewCompletionProof("job-1", "/dev/sdb", failed)
	assert.ErrorIs(t, err, ErrNotVerified)

	_, err = NewCompletionProof("job-1", "/dev/sdb", nil)
	assert.ErrorIs(t, err, ErrNotVerified)
}

func TestIssueRequiresProof(t *testing.T) {
	authority := testAuthority(t)
	_, err := authority.Issue(nil, testRequest())
	assert.ErrorIs(t, err, ErrNotVerified)
}

func TestCertificateSaveLoadRoundTrip(t *testing.T) {
	authority := testAuthority(t)

	proof, err := NewCompletionProof("job-1", "/dev/sdb", passedReport())
	require.NoError(t, err)
	c, err := authority.Issue(proof, testRequest())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "cert.json")
	require.NoError(t, c.Save(path))

	loaded, err := LoadCertificate(path)
	require.NoError(t, err)
	require.NoError(t, loaded.Verify(authority.PublicKey()))
	assert.Equal(t, c.ContentHash, loaded.ContentHash)
}

func TestAuditLogAppendsJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")

	log, err := OpenAuditLog(path)
	require.NoError(t, err)

	require.NoError(t, log.Record(EventJobSubmitted, "job-1", "/dev/sdb",
		map[string]interface{}{"category": "purge"}))
	require.NoError(t, log.Record(EventJobFinished, "job-1", "/dev/sdb", nil))
	require.NoError(t, log.Close())

	// Дозапись после переоткрытия не затирает прежние записи
	log, err = OpenAuditLog(path)
	require.NoError(t, err)
	require.NoError(t, log.Record(EventJobSubmitted, "job-2", "/dev/sdc", nil))
	require.NoError(t, log.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var entries []AuditEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry AuditEntry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		entries = append(entries, entry)
	}

	require.Len(t, entries, 3)
	assert.Equal(t, EventJobSubmitted, entries[0].Event)
	assert.Equal(t, "job-1", entries[0].JobID)
	assert.Equal(t, "job-2", entries[2].JobID)
	assert.NotEqual(t, entries[0].ID, entries[1].ID)
	assert.False(t, entries[0].Timestamp.IsZero())
}
