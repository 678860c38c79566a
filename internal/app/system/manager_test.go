package system

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yassin6up/somoo-sub000/pkg/logger"
)

type stubService struct {
	name     string
	startErr error
	journal  *[]string
}

func (s stubService) Name() string { return s.name }

func (s stubService) Start(context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	*s.journal = append(*s.journal, "start "+s.name)
	return nil
}

func (s stubService) Stop(context.Context) error {
	*s.journal = append(*s.journal, "stop "+s.name)
	return nil
}

func TestManagerStartsInOrderStopsInReverse(t *testing.T) {
	var journal []string
	m := NewManager(logger.NewDiscard())
	m.Register(stubService{name: "a", journal: &journal}, stubService{name: "b", journal: &journal})
	assert.Equal(t, []string{"a", "b"}, m.Names())

	require.NoError(t, m.Start(context.Background()))
	require.Error(t, m.Start(context.Background()))
	require.NoError(t, m.Stop(context.Background()))
	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, journal)
}

func TestManagerRollsBackOnStartFailure(t *testing.T) {
	var journal []string
	m := NewManager(logger.NewDiscard())
	m.Register(
		stubService{name: "a", journal: &journal},
		stubService{name: "b", journal: &journal, startErr: errors.New("boom")},
		stubService{name: "c", journal: &journal},
	)

	err := m.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start b")
	assert.Equal(t, []string{"start a", "stop a"}, journal)
}
