// ABOUTME: Tests for the Kubernetes Secret credential loader.
// ABOUTME: Uses the client-go fake clientset.

package kube

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestSecretLoaderName(t *testing.T) {
	loader := NewSecretLoaderWithClientset(fake.NewSimpleClientset(), testLogger())
	assert.Equal(t, "kubernetes-secret", loader.Name())
}

func TestLoadCredentials(t *testing.T) {
	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: "scanrelay", Namespace: "tools"},
		Data: map[string][]byte{
			"SONARQUBE_TOKEN":     []byte("sonar-token\n"),
			"AUTH0_CLIENT_ID":     []byte("client-id"),
			"AUTH0_CLIENT_SECRET": []byte("   "),
			"UNRELATED":           []byte("ignored"),
		},
	}
	loader := NewSecretLoaderWithClientset(fake.NewSimpleClientset(secret), testLogger())

	creds, err := loader.LoadCredentials(context.Background(), "tools", "scanrelay")
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"SONARQUBE_TOKEN": "sonar-token",
		"AUTH0_CLIENT_ID": "client-id",
	}, creds)
}

func TestLoadCredentialsStringData(t *testing.T) {
	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: "scanrelay", Namespace: "tools"},
		StringData: map[string]string{"AUTH0_CLIENT_SECRET": "shh"},
	}
	loader := NewSecretLoaderWithClientset(fake.NewSimpleClientset(secret), testLogger())

	creds, err := loader.LoadCredentials(context.Background(), "tools", "scanrelay")
	require.NoError(t, err)
	assert.Equal(t, "shh", creds["AUTH0_CLIENT_SECRET"])
}

func TestLoadCredentialsMissingSecret(t *testing.T) {
	loader := NewSecretLoaderWithClientset(fake.NewSimpleClientset(), testLogger())

	_, err := loader.LoadCredentials(context.Background(), "tools", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tools/missing")
}
