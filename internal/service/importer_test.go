package service

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/linkbio/internal/apperror"
	"github.com/sakif/linkbio/internal/enrich"
	"github.com/sakif/linkbio/internal/metrics"
)

type stubImporter struct {
	res enrich.Result
	err error
}

func (s stubImporter) Import(context.Context, string) (enrich.Result, error) { return s.res, s.err }

func TestImportService(t *testing.T) {
	mock := enrich.Result{Kind: enrich.KindMock, Err: errors.New("timeout"), Profile: enrich.Profile{Title: "x (Mock)"}}
	before := testutil.ToFloat64(metrics.Imports.WithLabelValues("mock"))

	svc := NewImportService(stubImporter{res: mock}, discardLogger())
	res, err := svc.Import(context.Background(), "acc-1", "https://linktr.ee/x")
	require.NoError(t, err)
	assert.True(t, res.IsMock())
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.Imports.WithLabelValues("mock")))

	svc = NewImportService(stubImporter{err: apperror.ValidationFailed("url", "bad")}, discardLogger())
	_, err = svc.Import(context.Background(), "acc-1", "https://example.com")
	assert.True(t, errors.Is(err, apperror.ErrValidation))
}
