package neo4j

import (
	"context"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/logging"
	apperrors "github.com/biosustain/lifelike-annotator/pkg/errors"
)

type fakeResult struct {
	records []*neo4j.Record
	pos     int
	err     error
}

func (r *fakeResult) Next(_ context.Context) bool {
	if r.pos >= len(r.records) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeResult) Record() *neo4j.Record { return r.records[r.pos-1] }
func (r *fakeResult) Err() error            { return r.err }
func (r *fakeResult) Consume(_ context.Context) (neo4j.ResultSummary, error) {
	return nil, nil
}

type fakeTransaction struct {
	result    *fakeResult
	runErr    error
	lastQuery string
}

func (t *fakeTransaction) Run(_ context.Context, cypher string, _ map[string]any) (Result, error) {
	t.lastQuery = cypher
	if t.runErr != nil {
		return nil, t.runErr
	}
	return t.result, nil
}

type fakeSession struct {
	tx     *fakeTransaction
	closed bool
}

func (s *fakeSession) ExecuteRead(_ context.Context, work func(Transaction) (any, error)) (any, error) {
	return work(s.tx)
}

func (s *fakeSession) Close(_ context.Context) error {
	s.closed = true
	return nil
}

type fakeDriver struct {
	session       *fakeSession
	verifyErr     error
	sessionConfig neo4j.SessionConfig
}

func (d *fakeDriver) VerifyConnectivity(_ context.Context) error { return d.verifyErr }

func (d *fakeDriver) NewSession(_ context.Context, cfg neo4j.SessionConfig) internalSession {
	d.sessionConfig = cfg
	return d.session
}

func (d *fakeDriver) Close(_ context.Context) error { return nil }

func newTestDriver(fd *fakeDriver, database string) *Driver {
	return &Driver{
		driver: fd,
		cfg:    Neo4jConfig{Database: database},
		logger: logging.NewNopLogger(),
	}
}

func TestExecuteRead_RunsWorkAndClosesSession(t *testing.T) {
	session := &fakeSession{tx: &fakeTransaction{result: &fakeResult{
		records: []*neo4j.Record{{Keys: []string{"n"}, Values: []interface{}{int64(7)}}},
	}}}
	fd := &fakeDriver{session: session}
	d := newTestDriver(fd, "graph")

	out, err := d.ExecuteRead(context.Background(), func(tx Transaction) (interface{}, error) {
		res, err := tx.Run(context.Background(), "MATCH (n) RETURN n", nil)
		require.NoError(t, err)
		require.True(t, res.Next(context.Background()))
		return res.Record().Values[0], nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), out)
	assert.True(t, session.closed)
	assert.Equal(t, neo4j.AccessModeRead, fd.sessionConfig.AccessMode)
	assert.Equal(t, "graph", fd.sessionConfig.DatabaseName)
}

func TestExecuteRead_DefaultsDatabaseName(t *testing.T) {
	fd := &fakeDriver{session: &fakeSession{tx: &fakeTransaction{result: &fakeResult{}}}}
	d := newTestDriver(fd, "")

	_, err := d.ExecuteRead(context.Background(), func(Transaction) (interface{}, error) {
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "neo4j", fd.sessionConfig.DatabaseName)
}

func TestExecuteRead_WrapsFailure(t *testing.T) {
	fd := &fakeDriver{session: &fakeSession{tx: &fakeTransaction{
		runErr: apperrors.New(apperrors.ErrCodeDatabaseError, "boom"),
	}}}
	d := newTestDriver(fd, "graph")

	_, err := d.ExecuteRead(context.Background(), func(tx Transaction) (interface{}, error) {
		return tx.Run(context.Background(), "RETURN 1", nil)
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeDatabaseError, apperrors.GetCode(err))
}

func TestHealthCheck(t *testing.T) {
	session := &fakeSession{tx: &fakeTransaction{result: &fakeResult{
		records: []*neo4j.Record{{Keys: []string{"health"}, Values: []interface{}{int64(1)}}},
	}}}
	fd := &fakeDriver{session: session}
	d := newTestDriver(fd, "graph")

	require.NoError(t, d.HealthCheck(context.Background()))
	assert.Equal(t, "RETURN 1 AS health", session.tx.lastQuery)
}

func TestHealthCheck_ConnectivityFailure(t *testing.T) {
	fd := &fakeDriver{verifyErr: assert.AnError}
	d := newTestDriver(fd, "graph")

	err := d.HealthCheck(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeDatabaseError, apperrors.GetCode(err))
}
