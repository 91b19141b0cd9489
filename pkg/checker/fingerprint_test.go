package checker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samsamfire/c3d/pkg/environment"
)

func TestFingerprintIsStableAcrossClones(t *testing.T) {
	e := environment.New(environment.Config{Sockets: 2}, nil)
	require.NoError(t, e.Fire(environment.Rule{Kind: environment.KindRead, Socket: 0}))

	clone := e.Clone()
	assert.Equal(t, fingerprint(e), fingerprint(clone))
}

func TestFingerprintDiffersAfterAStep(t *testing.T) {
	e := environment.New(environment.Config{Sockets: 2}, nil)
	before := fingerprint(e)
	require.NoError(t, e.Fire(environment.Rule{Kind: environment.KindRead, Socket: 0}))
	assert.NotEqual(t, before, fingerprint(e))
}
