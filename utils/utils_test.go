package utils

import (
	"bytes"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestGenerateCode(t *testing.T) {
	a, err := GenerateCode(16)
	require.NoError(t, err)
	b, err := GenerateCode(16)
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}

func TestGenerateOTP(t *testing.T) {
	for i := 0; i < 50; i++ {
		otp, err := GenerateOTP()
		require.NoError(t, err)
		require.Len(t, otp, 6)
		n, err := strconv.Atoi(otp)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("secret123")
	require.NoError(t, err)

	assert.NoError(t, ComparePasswords(hash, "secret123"))
	assert.Error(t, ComparePasswords(hash, "secret124"))
}

func TestJWTRoundTrip(t *testing.T) {
	token, err := GenerateJWT(42, "customer", "test-secret", time.Hour)
	require.NoError(t, err)

	claims, err := ParseJWT(token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "customer", claims.Role)
	assert.Equal(t, "42", claims.Subject)

	_, err = ParseJWT(token, "other-secret")
	assert.Error(t, err)
}

func TestJWTExpired(t *testing.T) {
	token, err := GenerateJWT(7, "admin", "test-secret", -time.Minute)
	require.NoError(t, err)

	_, err = ParseJWT(token, "test-secret")
	assert.Error(t, err)
}

func TestMailTemplatesRender(t *testing.T) {
	var buf bytes.Buffer
	err := templates.ExecuteTemplate(&buf, "reset_password.html", EmailData{Name: "Asha", OTP: "123456"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "123456")
	assert.Contains(t, buf.String(), "Asha")
}

func TestMailerWithoutSMTPOnlyLogs(t *testing.T) {
	m := &Mailer{Logger: zaptest.NewLogger(t)}

	assert.NoError(t, m.SendVerificationEmail("asha@example.com", "Asha", "http://localhost/verify-email?token=abc"))
	assert.NoError(t, m.SendPasswordResetOTP("asha@example.com", "Asha", "123456"))
}

func TestParsePage(t *testing.T) {
	page, limit := ParsePage("", "", 10, 100)
	assert.Equal(t, 1, page)
	assert.Equal(t, 10, limit)

	page, limit = ParsePage("3", "500", 10, 100)
	assert.Equal(t, 3, page)
	assert.Equal(t, 100, limit)

	page, limit = ParsePage("-2", "abc", 15, 100)
	assert.Equal(t, 1, page)
	assert.Equal(t, 15, limit)
	assert.Equal(t, 0, Offset(page, limit))
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(25, 2, 10)
	assert.Equal(t, 3, p.TotalPages)
	assert.True(t, p.HasPrevPage)
	assert.True(t, p.HasNextPage)
	assert.Equal(t, 1, p.PreviousPage)
	assert.Equal(t, 3, p.NextPage)

	last := NewPagination(25, 3, 10)
	assert.False(t, last.HasNextPage)

	empty := NewPagination(0, 1, 10)
	assert.False(t, empty.HasPrevPage)
	assert.False(t, empty.HasNextPage)
}
