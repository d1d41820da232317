// ABOUTME: Kubernetes Secret loader for relay credentials in cluster mode.
// ABOUTME: Reads SonarQube and submission API credentials from a namespaced Secret.

package kube

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// CredentialKeys are the Secret data keys the relay understands
var CredentialKeys = []string{
	"SONARQUBE_TOKEN",
	"AUTH0_CLIENT_ID",
	"AUTH0_CLIENT_SECRET",
}

// SecretLoader reads credentials from Kubernetes Secrets
type SecretLoader struct {
	clientset kubernetes.Interface
	logger    *logrus.Logger
}

// NewSecretLoader connects to the cluster the process runs in, falling back
// to the local kubeconfig
func NewSecretLoader(logger *logrus.Logger) (*SecretLoader, error) {
	var config *rest.Config
	var err error

	// Try in-cluster config first (for pod deployment)
	config, err = rest.InClusterConfig()
	if err != nil {
		// Fallback to kubeconfig (for local development)
		logger.Info("In-cluster config not available, trying kubeconfig")
		config, err = clientcmd.BuildConfigFromFlags("", clientcmd.RecommendedHomeFile)
		if err != nil {
			return nil, fmt.Errorf("failed to build kubernetes config: %w", err)
		}
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes clientset: %w", err)
	}

	logger.Info("Successfully connected to Kubernetes cluster")
	return NewSecretLoaderWithClientset(clientset, logger), nil
}

// NewSecretLoaderWithClientset creates a loader on an existing clientset
func NewSecretLoaderWithClientset(clientset kubernetes.Interface, logger *logrus.Logger) *SecretLoader {
	return &SecretLoader{
		clientset: clientset,
		logger:    logger,
	}
}

// Name returns the credential source name
func (l *SecretLoader) Name() string {
	return "kubernetes-secret"
}

// LoadCredentials returns the recognized, non-empty credential values of a Secret
func (l *SecretLoader) LoadCredentials(ctx context.Context, namespace, name string) (map[string]string, error) {
	logger := l.logger.WithFields(logrus.Fields{
		"namespace": namespace,
		"secret":    name,
	})

	secret, err := l.clientset.CoreV1().Secrets(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get secret %s/%s: %w", namespace, name, err)
	}

	creds := make(map[string]string)
	for _, key := range CredentialKeys {
		if raw, ok := secret.Data[key]; ok {
			if value := strings.TrimSpace(string(raw)); value != "" {
				creds[key] = value
			}
			continue
		}
		if value := strings.TrimSpace(secret.StringData[key]); value != "" {
			creds[key] = value
		}
	}

	logger.WithField("keys", len(creds)).Info("Loaded credentials from secret")
	return creds, nil
}
