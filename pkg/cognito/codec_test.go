package cognito_test

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"testing"
	"time"

	"github.com/fzdarsky/hiveauth/pkg/cognito"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		name     string
		input    time.Time
		expected string
	}{
		{
			name:     "single digit day has no leading zero",
			input:    time.Date(2026, time.February, 3, 4, 5, 6, 0, time.UTC),
			expected: "Tue Feb 3 04:05:06 UTC 2026",
		},
		{
			name:     "two digit day",
			input:    time.Date(2026, time.October, 19, 23, 59, 1, 0, time.UTC),
			expected: "Mon Oct 19 23:59:01 UTC 2026",
		},
		{
			name:     "converted to UTC",
			input:    time.Date(2026, time.January, 1, 1, 30, 0, 0, time.FixedZone("CET", 3600)),
			expected: "Thu Jan 1 00:30:00 UTC 2026",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, cognito.FormatTimestamp(tt.input))
		})
	}
}

func TestSignature_Golden(t *testing.T) {
	key, err := hex.DecodeString("cf59e793cb20b4292d30d32660a6acb8")
	require.NoError(t, err)

	sig := cognito.Signature(key, "ABCDEFGHI", "user-id-for-srp", []byte("secret-block-bytes"), "Tue Feb 3 04:05:06 UTC 2026")
	assert.Equal(t, "WfR4KwEWrYFuYiIY6niV59Qx6yLsOhBcVmuedz/d980=", sig)
}

func TestSecretHash_Golden(t *testing.T) {
	assert.Equal(t, "NpqglvUHBpz0nyO+qeiUjlRR297+e+uA7UhuwY3pkSE=",
		cognito.SecretHash("client-secret", "user@example.com", "client-id"))
}

func TestPoolName(t *testing.T) {
	name, err := cognito.PoolName("eu-west-1_ABCDEFGHI")
	require.NoError(t, err)
	assert.Equal(t, "ABCDEFGHI", name)

	region, err := cognito.Region("eu-west-1_ABCDEFGHI")
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", region)

	for _, bad := range []string{"", "nounderscore", "_ABC", "eu-west-1_"} {
		_, err := cognito.PoolName(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseSRPChallenge(t *testing.T) {
	secretBlock := base64.StdEncoding.EncodeToString([]byte("opaque"))

	t.Run("password verifier", func(t *testing.T) {
		c, err := cognito.ParseSRPChallenge(map[string]string{
			"SALT":            "AB01",
			"SRP_B":           "ff00",
			"SECRET_BLOCK":    secretBlock,
			"USER_ID_FOR_SRP": "uuid-1234",
			"USERNAME":        "uuid-1234",
		})
		require.NoError(t, err)
		assert.Equal(t, []byte{0x00, 0xab, 0x01}, c.Salt)
		assert.Equal(t, int64(0xff00), c.B.Int64())
		assert.Equal(t, []byte("opaque"), c.SecretBlock)
		assert.Equal(t, secretBlock, c.SecretBlockB64)
		assert.Equal(t, "uuid-1234", c.UserIDForSRP)
	})

	t.Run("salt keeps leading zero bytes", func(t *testing.T) {
		c, err := cognito.ParseSRPChallenge(map[string]string{
			"SALT":            "0012ab",
			"SRP_B":           "ff00",
			"SECRET_BLOCK":    secretBlock,
			"USER_ID_FOR_SRP": "uuid-1234",
		})
		require.NoError(t, err)
		assert.Equal(t, []byte{0x00, 0x12, 0xab}, c.Salt)
	})

	t.Run("device verifier carries only USERNAME", func(t *testing.T) {
		c, err := cognito.ParseSRPChallenge(map[string]string{
			"SALT":         "01",
			"SRP_B":        "02",
			"SECRET_BLOCK": secretBlock,
			"USERNAME":     "uuid-5678",
		})
		require.NoError(t, err)
		assert.Equal(t, "uuid-5678", c.UserIDForSRP)
		assert.Equal(t, "uuid-5678", c.Username)
	})

	tests := []struct {
		name   string
		params map[string]string
		errMsg string
	}{
		{
			name:   "missing user",
			params: map[string]string{"SALT": "01", "SRP_B": "02", "SECRET_BLOCK": secretBlock},
			errMsg: "USER_ID_FOR_SRP",
		},
		{
			name:   "bad salt",
			params: map[string]string{"SALT": "zz", "SRP_B": "02", "SECRET_BLOCK": secretBlock, "USERNAME": "u"},
			errMsg: "SALT",
		},
		{
			name:   "missing B",
			params: map[string]string{"SALT": "01", "SECRET_BLOCK": secretBlock, "USERNAME": "u"},
			errMsg: "SRP_B",
		},
		{
			name:   "missing secret block",
			params: map[string]string{"SALT": "01", "SRP_B": "02", "USERNAME": "u"},
			errMsg: "SECRET_BLOCK",
		},
		{
			name:   "bad secret block",
			params: map[string]string{"SALT": "01", "SRP_B": "02", "SECRET_BLOCK": "!!!", "USERNAME": "u"},
			errMsg: "invalid encoding",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cognito.ParseSRPChallenge(tt.params)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestNewUserSRPAuth_JSON(t *testing.T) {
	in := cognito.NewUserSRPAuth("client-id", "user@example.com", "abcdef").
		With(cognito.ParamSecretHash, "hash").
		With(cognito.ParamDeviceKey, "")

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"AuthFlow": "USER_SRP_AUTH",
		"AuthParameters": {"USERNAME": "user@example.com", "SRP_A": "abcdef", "SECRET_HASH": "hash"},
		"ClientId": "client-id"
	}`, string(data))
}

func TestNewRefreshAuth_JSON(t *testing.T) {
	in := cognito.NewRefreshAuth("client-id", "refresh").With(cognito.ParamDeviceKey, "eu-west-1_dev")

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"AuthFlow": "REFRESH_TOKEN_AUTH",
		"AuthParameters": {"REFRESH_TOKEN": "refresh", "DEVICE_KEY": "eu-west-1_dev"},
		"ClientId": "client-id"
	}`, string(data))
}

func TestChallengeResponses(t *testing.T) {
	c := &cognito.SRPChallenge{Username: "uuid", UserIDForSRP: "uuid", SecretBlockB64: "c2I="}

	pv := cognito.NewPasswordVerifierResponse("cid", "sess", c, "ts", "sig")
	assert.Equal(t, cognito.ChallengePasswordVerifier, pv.ChallengeName)
	assert.Equal(t, map[string]string{
		"TIMESTAMP":                   "ts",
		"USERNAME":                    "uuid",
		"PASSWORD_CLAIM_SECRET_BLOCK": "c2I=",
		"PASSWORD_CLAIM_SIGNATURE":    "sig",
	}, pv.ChallengeResponses)
	assert.Equal(t, "sess", pv.Session)

	mfa := cognito.NewSMSMFAResponse("cid", "sess", "uuid", "123456")
	assert.Equal(t, cognito.ChallengeSMSMFA, mfa.ChallengeName)
	assert.Equal(t, map[string]string{"SMS_MFA_CODE": "123456", "USERNAME": "uuid"}, mfa.ChallengeResponses)

	dsrp := cognito.NewDeviceSRPResponse("cid", "sess", "uuid", "aa", "dk")
	assert.Equal(t, cognito.ChallengeDeviceSRPAuth, dsrp.ChallengeName)
	assert.Equal(t, map[string]string{"USERNAME": "uuid", "SRP_A": "aa", "DEVICE_KEY": "dk"}, dsrp.ChallengeResponses)

	dpv := cognito.NewDevicePasswordVerifierResponse("cid", "sess", c, "ts", "sig", "dk").
		With(cognito.ParamSecretHash, "h")
	assert.Equal(t, cognito.ChallengeDevicePasswordVerifier, dpv.ChallengeName)
	assert.Equal(t, "dk", dpv.ChallengeResponses["DEVICE_KEY"])
	assert.Equal(t, "h", dpv.ChallengeResponses["SECRET_HASH"])

	data, err := json.Marshal(cognito.NewSMSMFAResponse("cid", "", "u", "1"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "Session")
}

func TestAuthOutput_Decode(t *testing.T) {
	body := `{
		"AuthenticationResult": {
			"AccessToken": "access", "ExpiresIn": 3600, "IdToken": "id", "RefreshToken": "refresh",
			"TokenType": "Bearer",
			"NewDeviceMetadata": {"DeviceGroupKey": "-grp", "DeviceKey": "eu-west-1_dev"}
		},
		"ChallengeParameters": {}
	}`

	var out cognito.AuthOutput
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	require.NotNil(t, out.AuthenticationResult)
	assert.Equal(t, "id", out.AuthenticationResult.IDToken)
	assert.Equal(t, 3600, out.AuthenticationResult.ExpiresIn)
	require.NotNil(t, out.AuthenticationResult.NewDeviceMetadata)
	assert.Equal(t, "eu-west-1_dev", out.AuthenticationResult.NewDeviceMetadata.DeviceKey)
	assert.Empty(t, out.ChallengeName)
}
