package security

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMetricsLabels(t *testing.T) {
	labels, err := ParseMetricsLabels("")
	require.NoError(t, err)
	assert.Nil(t, labels)

	labels, err = ParseMetricsLabels("env=prod,region=eu-west-1")
	require.NoError(t, err)
	assert.Equal(t, prometheus.Labels{"env": "prod", "region": "eu-west-1"}, labels)

	_, err = ParseMetricsLabels("no-equals-sign")
	require.Error(t, err)

	_, err = ParseMetricsLabels("bad key=value")
	require.Error(t, err)
}

func TestParseMetricsLabelsExpandsEnv(t *testing.T) {
	t.Setenv("CHAT_STORE_TEST_REGION", "us-east-1")

	labels, err := ParseMetricsLabels("region=${CHAT_STORE_TEST_REGION}")
	require.NoError(t, err)
	assert.Equal(t, prometheus.Labels{"region": "us-east-1"}, labels)
}
