// Copyright © 2025 Kaleido, Inc.
//
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"path"
	"sync/atomic"
	"syscall"
	"testing"

	"github.com/kaleido-io/flowbridge/internal/bridge"
	"github.com/kaleido-io/flowbridge/pkg/flowconf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBridge struct {
	initErr  error
	startErr error
	started  chan struct{}
	stops    int32
}

func newFakeBridge() *fakeBridge {
	return &fakeBridge{started: make(chan struct{})}
}

func (fb *fakeBridge) Init() error {
	return fb.initErr
}

func (fb *fakeBridge) Start() error {
	if fb.startErr != nil {
		return fb.startErr
	}
	close(fb.started)
	return nil
}

func (fb *fakeBridge) Stop() {
	atomic.AddInt32(&fb.stops, 1)
}

func (fb *fakeBridge) APIAddr() net.Addr {
	return nil
}

func setupTestRun(t *testing.T, fake *fakeBridge) (string, func()) {
	origFactory := bridgeFactory
	bridgeFactory = func(ctx context.Context, conf *flowconf.FlowBridgeConfig) bridge.FlowBridge {
		return fake
	}
	configFile := path.Join(t.TempDir(), "flowbridge.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("log:\n  level: debug\n"), 0644))
	return configFile, func() { bridgeFactory = origFactory }
}

func TestStartSignalStop(t *testing.T) {
	fake := newFakeBridge()
	configFile, done := setupTestRun(t, fake)
	defer done()

	completed := make(chan error)
	go func() {
		rootCmd.SetArgs([]string{"start", "-f", configFile})
		completed <- rootCmd.Execute()
	}()

	<-fake.started
	running.Load().signals <- syscall.SIGQUIT

	require.NoError(t, <-completed)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fake.stops))
	assert.Nil(t, running.Load())
}

func TestStartBadConfigFile(t *testing.T) {
	fake := newFakeBridge()
	_, done := setupTestRun(t, fake)
	defer done()

	err := newInstance(path.Join(t.TempDir(), "wrong.yaml")).run()
	assert.Regexp(t, "FB000100", err)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fake.stops))
}

func TestStartInitFail(t *testing.T) {
	fake := newFakeBridge()
	fake.initErr = fmt.Errorf("pop")
	configFile, done := setupTestRun(t, fake)
	defer done()

	err := newInstance(configFile).run()
	assert.Regexp(t, "FB001000.*pop", err)

	// The bridge is still stopped, releasing anything Init got through
	assert.Equal(t, int32(1), atomic.LoadInt32(&fake.stops))
}

func TestStartStartFail(t *testing.T) {
	fake := newFakeBridge()
	fake.startErr = fmt.Errorf("pop")
	configFile, done := setupTestRun(t, fake)
	defer done()

	err := newInstance(configFile).run()
	assert.Regexp(t, "FB001000.*pop", err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fake.stops))
}
