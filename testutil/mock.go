package testutil

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dan-strohschein/remotedb/protocol"
	"github.com/dan-strohschein/remotedb/query"
	"github.com/dan-strohschein/remotedb/result"
	"github.com/dan-strohschein/remotedb/service"
)

// MockService is an in-memory remote executor for tests. It implements
// service.Service and hands out counted handles through Factory.
//
// Example usage:
//
//	mock := NewMockService()
//	mock.ExpectGetInfo("Sybase").WillReturn(&service.Info{Dialect: sqlprovider.Sybase})
//	mock.ExpectNonQuery("Sybase").WillReturn(1)
//
//	c, _ := client.NewClient(&client.ClientOptions{Configuration: "Sybase", ServiceFactory: mock.Factory()})
//	...
//	mock.VerifyExpectations(t)
type MockService struct {
	codec        protocol.Codec
	expectations []*Expectation
	calls        []Call
	mu           sync.Mutex
	strict       bool // If true, unexpected calls will panic

	acquireErr error
	closeErr   error
	acquired   atomic.Int32
	released   atomic.Int32
}

// Expectation represents an expected call and its response.
type Expectation struct {
	method        string
	configuration string
	response      interface{}
	err           error
	times         int // Expected number of calls (-1 = any)
	actualCalls   int
}

// Call represents a call the mock received, with its payload decoded.
type Call struct {
	Method        string
	Configuration string
	Data          []byte

	// Statement and Params are set for query calls.
	Statement *query.Statement
	Params    []*query.Parameter

	// Batch holds the decoded statements of an ExecuteBatch call.
	Batch []*query.Statement
}

// NewMockService creates a mock that decodes payloads with the default codec.
func NewMockService() *MockService {
	return &MockService{codec: protocol.NewCodec()}
}

// Strict enables strict mode where unexpected calls will panic.
func (m *MockService) Strict() *MockService {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strict = true
	return m
}

// WithAcquireError makes Factory fail to produce handles.
func (m *MockService) WithAcquireError(err error) *MockService {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acquireErr = err
	return m
}

// WithCloseError makes closing a handle return err.
func (m *MockService) WithCloseError(err error) *MockService {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeErr = err
	return m
}

func (m *MockService) expect(method, configuration string) *Expectation {
	m.mu.Lock()
	defer m.mu.Unlock()

	exp := &Expectation{method: method, configuration: configuration, times: 1}
	m.expectations = append(m.expectations, exp)
	return exp
}

// ExpectGetInfo expects a GetInfo call. WillReturn takes a *service.Info.
func (m *MockService) ExpectGetInfo(configuration string) *Expectation {
	return m.expect(service.MethodGetInfo, configuration)
}

// ExpectNonQuery expects an ExecuteNonQuery call. WillReturn takes an int.
func (m *MockService) ExpectNonQuery(configuration string) *Expectation {
	return m.expect(service.MethodExecuteNonQuery, configuration)
}

// ExpectScalar expects an ExecuteScalar call. WillReturn takes the value.
func (m *MockService) ExpectScalar(configuration string) *Expectation {
	return m.expect(service.MethodExecuteScalar, configuration)
}

// ExpectReader expects an ExecuteReader call. WillReturn takes a
// *result.Table.
func (m *MockService) ExpectReader(configuration string) *Expectation {
	return m.expect(service.MethodExecuteReader, configuration)
}

// ExpectBatch expects an ExecuteBatch call.
func (m *MockService) ExpectBatch(configuration string) *Expectation {
	return m.expect(service.MethodExecuteBatch, configuration)
}

// WillReturn sets the return value for this expectation.
func (e *Expectation) WillReturn(response interface{}) *Expectation {
	e.response = response
	return e
}

// WillReturnError sets the error to return for this expectation.
func (e *Expectation) WillReturnError(err error) *Expectation {
	e.err = err
	return e
}

// Times sets the expected number of times this call should occur.
// Use -1 for "any number of times".
func (e *Expectation) Times(n int) *Expectation {
	e.times = n
	return e
}

// Once is a shorthand for Times(1).
func (e *Expectation) Once() *Expectation {
	return e.Times(1)
}

// Twice is a shorthand for Times(2).
func (e *Expectation) Twice() *Expectation {
	return e.Times(2)
}

// AnyTimes allows this expectation to match any number of times.
func (e *Expectation) AnyTimes() *Expectation {
	return e.Times(-1)
}

// match records call and returns the matching expectation's response.
func (m *MockService) match(call Call) (interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, call)

	for _, exp := range m.expectations {
		if exp.method != call.Method || exp.configuration != call.Configuration {
			continue
		}
		if exp.times == -1 || exp.actualCalls < exp.times {
			exp.actualCalls++
			return exp.response, exp.err
		}
	}

	if m.strict {
		panic(fmt.Sprintf("unexpected %s call for configuration %q", call.Method, call.Configuration))
	}
	return nil, fmt.Errorf("no expectation set for %s(%q)", call.Method, call.Configuration)
}

func (m *MockService) queryCall(method, configuration string, data []byte) (Call, error) {
	call := Call{Method: method, Configuration: configuration, Data: data}
	stmt, params, err := m.codec.DecodeQuery(data)
	if err != nil {
		return call, err
	}
	call.Statement, call.Params = stmt, params
	return call, nil
}

// GetInfo implements service.Service.
func (m *MockService) GetInfo(ctx context.Context, configuration string) (*service.Info, error) {
	resp, err := m.match(Call{Method: service.MethodGetInfo, Configuration: configuration})
	if err != nil {
		return nil, err
	}
	info, _ := resp.(*service.Info)
	return info, nil
}

// ExecuteNonQuery implements service.Service.
func (m *MockService) ExecuteNonQuery(ctx context.Context, configuration string, data []byte) (int, error) {
	call, err := m.queryCall(service.MethodExecuteNonQuery, configuration, data)
	if err != nil {
		return 0, err
	}
	resp, err := m.match(call)
	if err != nil {
		return 0, err
	}
	n, _ := resp.(int)
	return n, nil
}

// ExecuteScalar implements service.Service.
func (m *MockService) ExecuteScalar(ctx context.Context, configuration string, data []byte) ([]byte, error) {
	call, err := m.queryCall(service.MethodExecuteScalar, configuration, data)
	if err != nil {
		return nil, err
	}
	resp, err := m.match(call)
	if err != nil {
		return nil, err
	}
	return m.codec.EncodeScalar(resp)
}

// ExecuteReader implements service.Service.
func (m *MockService) ExecuteReader(ctx context.Context, configuration string, data []byte) ([]byte, error) {
	call, err := m.queryCall(service.MethodExecuteReader, configuration, data)
	if err != nil {
		return nil, err
	}
	resp, err := m.match(call)
	if err != nil {
		return nil, err
	}
	tbl, _ := resp.(*result.Table)
	if tbl == nil {
		tbl = result.NewTable()
	}
	return m.codec.EncodeResult(tbl)
}

// ExecuteBatch implements service.Service.
func (m *MockService) ExecuteBatch(ctx context.Context, configuration string, data []byte) error {
	call := Call{Method: service.MethodExecuteBatch, Configuration: configuration, Data: data}
	items, err := m.codec.DecodeBatch(data)
	if err != nil {
		return err
	}
	for _, item := range items {
		stmt, _, err := m.codec.DecodeQuery(item)
		if err != nil {
			return err
		}
		call.Batch = append(call.Batch, stmt)
	}
	_, err = m.match(call)
	return err
}

// Close implements service.Service.
func (m *MockService) Close() error {
	m.released.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeErr
}

// handle is one acquired service handle.
type handle struct {
	*MockService
	closed atomic.Bool
}

func (h *handle) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("handle closed twice")
	}
	return h.MockService.Close()
}

// Factory returns a service.Factory producing counted handles.
func (m *MockService) Factory() service.Factory {
	return func(ctx context.Context) (service.Service, error) {
		m.mu.Lock()
		err := m.acquireErr
		m.mu.Unlock()
		if err != nil {
			return nil, err
		}
		m.acquired.Add(1)
		return &handle{MockService: m}, nil
	}
}

// Acquired returns how many handles Factory produced.
func (m *MockService) Acquired() int { return int(m.acquired.Load()) }

// Released returns how many handles were closed.
func (m *MockService) Released() int { return int(m.released.Load()) }

// OpenHandles returns Acquired minus Released.
func (m *MockService) OpenHandles() int { return m.Acquired() - m.Released() }

// VerifyExpectations checks that all expectations were met.
// Should be called at the end of each test.
func (m *MockService) VerifyExpectations(t testing.TB) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, exp := range m.expectations {
		if exp.times != -1 && exp.actualCalls != exp.times {
			t.Errorf("expectation %d (%s %q): expected %d calls, got %d",
				i, exp.method, exp.configuration, exp.times, exp.actualCalls)
		}
	}
}

// GetCalls returns all recorded calls.
func (m *MockService) GetCalls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call{}, m.calls...)
}

// GetCallCount returns the number of times a method was called.
func (m *MockService) GetCallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, call := range m.calls {
		if call.Method == method {
			count++
		}
	}
	return count
}

// Reset clears all expectations, recorded calls and handle counters.
func (m *MockService) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expectations = nil
	m.calls = nil
	m.acquireErr = nil
	m.closeErr = nil
	m.acquired.Store(0)
	m.released.Store(0)
}
