package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapNil(t *testing.T) {
	require.NoError(t, Wrap("Get", "k", nil))
}

func TestWrapPreservesSentinel(t *testing.T) {
	err := Wrap("Get", "rec-1", ErrNotFound)
	require.ErrorIs(t, err, ErrNotFound)
	require.True(t, IsNotFound(err))

	var se *StoreError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "Get", se.Op)
	require.Equal(t, "rec-1", se.Key)
	require.Equal(t, KindNotFound, se.Kind)
}

func TestWrapKindMapping(t *testing.T) {
	tests := []struct {
		err  error
		kind Kind
	}{
		{ErrNotFound, KindNotFound},
		{ErrKeyNotFound, KindNotFound},
		{ErrSnapshotNotFound, KindNotFound},
		{ErrCacheClosed, KindCache},
		{ErrStorage, KindStore},
		{ErrStoreClosed, KindStore},
		{ErrCorruptSnapshot, KindStore},
		{ErrQueueFull, KindOperation},
		{ErrWriterClosed, KindOperation},
		{errors.New("anything else"), KindOperation},
	}
	for _, tt := range tests {
		var se *StoreError
		require.ErrorAs(t, Wrap("op", nil, tt.err), &se)
		require.Equal(t, tt.kind, se.Kind, "kind for %v", tt.err)
	}
}

func TestWrapWrappedStorageCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap("Save", "rec-2", fmt.Errorf("%w: %w", ErrStorage, cause))
	require.True(t, IsStorage(err))
	require.ErrorIs(t, err, cause)
}

func TestWrapPassesValidationThrough(t *testing.T) {
	verr := NewValidationError("crop_recommendation", []string{
		"Missing required field: ph",
		"Humidity must be between 0 and 100",
	})
	err := Wrap("Save", nil, verr)
	require.Equal(t, verr, err)

	require.True(t, IsValidation(err))
	ve, ok := AsValidation(err)
	require.True(t, ok)
	require.Equal(t, "crop_recommendation", ve.RecordType)
	require.Len(t, ve.Violations, 2)
}

func TestStoreErrorMessage(t *testing.T) {
	withKey := Wrap("Get", "rec-3", ErrNotFound)
	require.Equal(t, "not_found: Get: key=rec-3: record not found", withKey.Error())

	withoutKey := Wrap("Flush", nil, ErrStorage)
	require.Equal(t, "store: Flush: storage operation failed", withoutKey.Error())
}

func TestValidationErrorMessage(t *testing.T) {
	err := NewValidationError("soil_analysis", []string{"Missing required field: field_id"})
	require.Equal(t, "validation: soil_analysis: Missing required field: field_id", err.Error())
}

func TestPredicatesRejectUnrelated(t *testing.T) {
	err := errors.New("boom")
	require.False(t, IsNotFound(err))
	require.False(t, IsValidation(err))
	require.False(t, IsStorage(err))
	require.False(t, IsQueueFull(err))
	require.False(t, IsCacheClosed(err))
}
