package main

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMigrator struct {
	upErr     error
	steps     []int
	forced    []int
	version   uint
	dirty     bool
	versionEr error
}

func (f *fakeMigrator) Up() error   { return f.upErr }
func (f *fakeMigrator) Down() error { return migrate.ErrNoChange }

func (f *fakeMigrator) Steps(n int) error {
	f.steps = append(f.steps, n)
	return nil
}

func (f *fakeMigrator) Version() (uint, bool, error) {
	return f.version, f.dirty, f.versionEr
}

func (f *fakeMigrator) Force(version int) error {
	f.forced = append(f.forced, version)
	return nil
}

func TestRunUp(t *testing.T) {
	assert.NoError(t, run(&fakeMigrator{}, "up", nil))
	assert.NoError(t, run(&fakeMigrator{upErr: migrate.ErrNoChange}, "up", nil))

	err := run(&fakeMigrator{upErr: errors.New("dirty database")}, "up", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dirty database")
}

func TestRunDownNoChange(t *testing.T) {
	assert.NoError(t, run(&fakeMigrator{}, "down", nil))
}

func TestRunStepsAndForce(t *testing.T) {
	m := &fakeMigrator{}

	require.NoError(t, run(m, "steps", []string{"-1"}))
	require.NoError(t, run(m, "force", []string{"3"}))
	assert.Equal(t, []int{-1}, m.steps)
	assert.Equal(t, []int{3}, m.forced)

	assert.Error(t, run(m, "force", nil))
	assert.Error(t, run(m, "steps", []string{"two"}))
}

func TestRunVersion(t *testing.T) {
	assert.NoError(t, run(&fakeMigrator{version: 1}, "version", nil))
	assert.NoError(t, run(&fakeMigrator{versionEr: migrate.ErrNilVersion}, "version", nil))
	assert.Error(t, run(&fakeMigrator{versionEr: errors.New("boom")}, "version", nil))
}

func TestRunUnknownCommand(t *testing.T) {
	err := run(&fakeMigrator{}, "sideways", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}
