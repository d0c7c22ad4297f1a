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

// Package bridge assembles the FlowBridge runtime from its configuration:
// one business network client and session manager per declared connection,
// one adapter per declared flow, and the API, metrics and debug servers
// around them.
package bridge

import (
	"context"
	"net"
	"sort"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/kaleido-io/flowbridge/internal/adapters"
	"github.com/kaleido-io/flowbridge/internal/dispatch"
	"github.com/kaleido-io/flowbridge/internal/httpserver"
	"github.com/kaleido-io/flowbridge/internal/metrics"
	"github.com/kaleido-io/flowbridge/internal/metricsserver"
	"github.com/kaleido-io/flowbridge/internal/msgs"
	"github.com/kaleido-io/flowbridge/internal/payload"
	"github.com/kaleido-io/flowbridge/internal/router"
	"github.com/kaleido-io/flowbridge/internal/session"
	"github.com/kaleido-io/flowbridge/pkg/bnclient"
	"github.com/kaleido-io/flowbridge/pkg/confutil"
	"github.com/kaleido-io/flowbridge/pkg/flowconf"
	"github.com/kaleido-io/flowbridge/pkg/log"
	"github.com/prometheus/client_golang/prometheus"
)

type FlowBridge interface {
	Init() error
	Start() error
	Stop()
	APIAddr() net.Addr
}

// things that have a running component that is active in the background and hence "stops"
type stoppable interface {
	Stop()
}

// things that hold connections or trackers that need to release them and hence "close"
type closeable interface {
	Close()
}

// connection is the wiring shared by every flow bound to one configured
// business network connection: a single client, a single session, and a
// single dispatcher with its registry cache.
type connection struct {
	name       string
	conf       *flowconf.ConnectionConfig
	client     bnclient.BusinessNetworkClient
	sessions   *session.Manager
	dispatcher *dispatch.Dispatcher
}

type flowBridge struct {
	bgCtx context.Context
	conf  *flowconf.FlowBridgeConfig

	debugServer   httpserver.DebugServer
	registry      *prometheus.Registry
	metrics       metrics.FlowMetrics
	metricsServer metricsserver.MetricsServer
	apiRouter     router.Router
	adapters      *adapters.AdapterSet

	connections map[string]*connection

	running bool
	// keep track of everything we started
	started map[string]stoppable
	opened  map[string]closeable
}

func NewFlowBridge(bgCtx context.Context, conf *flowconf.FlowBridgeConfig) FlowBridge {
	log.InitConfig(&conf.Log)
	return &flowBridge{
		bgCtx:       bgCtx,
		conf:        conf,
		registry:    prometheus.NewRegistry(),
		adapters:    adapters.NewAdapterSet(),
		connections: make(map[string]*connection),
		started:     make(map[string]stoppable),
		opened:      make(map[string]closeable),
	}
}

func (fb *flowBridge) startDebugServer() (httpserver.DebugServer, error) {
	fb.conf.Debug.Port = confutil.P(confutil.Int(fb.conf.Debug.Port, 0)) // if enabled with no port, we allocate one
	server, err := httpserver.NewDebugServer(fb.bgCtx, &fb.conf.Debug.HTTPServerConfig)
	if err == nil {
		err = server.Start()
	}
	return server, err
}

func (fb *flowBridge) Init() (err error) {
	ctx := fb.bgCtx

	// start the debug server as early as possible
	if confutil.Bool(fb.conf.Debug.Enabled, *flowconf.DebugServerDefaults.Enabled) {
		fb.debugServer, err = fb.startDebugServer()
		err = fb.addIfStarted("debug_server", fb.debugServer, err, msgs.MsgBridgeDebugServerFailed)
	}

	if err == nil {
		err = fb.initConnections(ctx)
	}

	if err == nil {
		fb.metrics = metrics.InitMetrics(ctx, fb.registry)
		fb.metricsServer, err = metricsserver.NewMetricsServer(ctx, fb.registry, &fb.conf.Metrics)
		err = fb.wrapIfErr(err, msgs.MsgBridgeMetricsServerFailed)
	}

	if err == nil {
		fb.conf.API.Port = confutil.P(confutil.Int(fb.conf.API.Port, flowconf.DefaultAPIPort))
		fb.apiRouter, err = router.NewRouter(ctx, "API (HTTP)", &fb.conf.API.HTTPServerConfig)
		err = fb.wrapIfErr(err, msgs.MsgBridgeAPIServerFailed)
	}

	if err == nil {
		err = fb.initFlows(ctx)
	}

	if err == nil {
		fb.adapters.InstallRoutes(fb.apiRouter)
		fb.opened["flow_adapters"] = fb.adapters
	}
	return err
}

func (fb *flowBridge) initConnections(ctx context.Context) error {
	if len(fb.conf.Connections) == 0 {
		return i18n.NewError(ctx, msgs.MsgConfigNoConnections)
	}
	names := make([]string, 0, len(fb.conf.Connections))
	for name := range fb.conf.Connections {
		names = append(names, name)
	}
	sort.Strings(names) // needs to be a consistent order

	for _, name := range names {
		connConf := fb.conf.Connections[name]
		if err := payload.ValidateConnection(ctx, name, connConf); err != nil {
			return err
		}
		if connConf.Endpoint.URL == "" {
			return i18n.NewError(ctx, msgs.MsgConfigConnectionMissingURL, name)
		}
		client, err := fb.newClient(ctx, name, connConf)
		if err != nil {
			return i18n.WrapError(ctx, err, msgs.MsgBridgeConnectionInitFailed, name)
		}
		sessions := session.NewManager(fb.bgCtx, name, connConf, client)
		fb.opened["session_"+name] = sessions
		fb.connections[name] = &connection{
			name:       name,
			conf:       connConf,
			client:     client,
			sessions:   sessions,
			dispatcher: dispatch.NewDispatcher(sessions, client, connConf),
		}
		log.L(ctx).Infof("Connection '%s' initialized (network=%s)", name, connConf.BusinessNetworkIdentifier)
	}
	return nil
}

// newClient builds the JSON/RPC client for one connection. When a WebSocket
// endpoint is declared we connect over it so subscriptions work, otherwise
// plain HTTP is all the connection needs.
func (fb *flowBridge) newClient(ctx context.Context, name string, conf *flowconf.ConnectionConfig) (bnclient.BusinessNetworkClient, error) {
	if conf.WSEndpoint != nil {
		wsc, err := bnclient.New().WebSocket(ctx, conf.WSEndpoint)
		if err != nil {
			return nil, err
		}
		fb.opened["client_"+name] = wsc
		return wsc, nil
	}
	return bnclient.New().HTTP(ctx, &conf.Endpoint)
}

func (fb *flowBridge) initFlows(ctx context.Context) error {
	if len(fb.conf.Flows) == 0 {
		log.L(ctx).Warnf("No flows configured")
	}
	seen := make(map[string]bool)
	for i, flowConf := range fb.conf.Flows {
		if flowConf.Name == "" {
			return i18n.NewError(ctx, msgs.MsgConfigFlowMissingName, i)
		}
		if seen[flowConf.Name] {
			return i18n.NewError(ctx, msgs.MsgConfigFlowDuplicateName, flowConf.Name)
		}
		seen[flowConf.Name] = true
		conn := fb.connections[flowConf.Connection]
		if conn == nil {
			return i18n.NewError(ctx, msgs.MsgConfigFlowUnknownConnection, flowConf.Name, flowConf.Connection)
		}
		if flowConf.Events.Enabled && conn.conf.WSEndpoint == nil {
			return i18n.NewError(ctx, msgs.MsgConfigFlowEventsNeedWS, flowConf.Name, conn.name)
		}
		fb.adapters.Add(adapters.NewFlowAdapter(fb.bgCtx, flowConf, &fb.conf.API.WS, conn.sessions, conn.dispatcher, conn.client, fb.metrics))
		log.L(ctx).Infof("Flow '%s' bound to connection '%s'", flowConf.Name, flowConf.Connection)
	}
	return nil
}

func (fb *flowBridge) Start() (err error) {
	if fb.running {
		return i18n.NewError(fb.bgCtx, msgs.MsgBridgeAlreadyStarted)
	}
	fb.running = true

	err = fb.apiRouter.Start()
	err = fb.addIfStarted("api_server", fb.apiRouter, err, msgs.MsgBridgeAPIServerFailed)
	if err == nil {
		log.L(fb.bgCtx).Infof("API server running on %s", fb.apiRouter.Addr())
	}

	if err == nil {
		err = fb.metricsServer.Start()
		err = fb.addIfStarted("metrics_server", fb.metricsServer, err, msgs.MsgBridgeMetricsServerFailed)
	}

	if err == nil {
		log.L(fb.bgCtx).Infof("Startup complete (%d flows on %d connections)", len(fb.conf.Flows), len(fb.connections))
	}
	return err
}

func (fb *flowBridge) wrapIfErr(err error, failMsg i18n.ErrorMessageKey, inserts ...any) error {
	if err != nil {
		return i18n.WrapError(fb.bgCtx, err, failMsg, inserts...)
	}
	return nil
}

func (fb *flowBridge) addIfStarted(desc string, c stoppable, err error, failMsg i18n.ErrorMessageKey, inserts ...any) error {
	if err != nil {
		return i18n.WrapError(fb.bgCtx, err, failMsg, inserts...)
	}
	fb.started[desc] = c
	return nil
}

func (fb *flowBridge) APIAddr() (a net.Addr) {
	if fb.apiRouter != nil {
		a = fb.apiRouter.Addr()
	}
	return a
}

func (fb *flowBridge) Stop() {
	log.L(fb.bgCtx).Info("Stopping")
	// stop all the stoppable things we started
	for name, c := range fb.started {
		log.L(fb.bgCtx).Infof("Stopping %s", name)
		c.Stop()
		log.L(fb.bgCtx).Debugf("Stopped %s", name)
	}
	// close all the closable things we opened
	for name, c := range fb.opened {
		log.L(fb.bgCtx).Infof("Stopping %s", name)
		c.Close()
		log.L(fb.bgCtx).Debugf("Stopped %s", name)
	}
	log.L(fb.bgCtx).Debug("Stopped")
}
