package classroom

import (
	"context"

	"github.com/medhanag29/rural-classroom/classroom/analysis"
	"github.com/medhanag29/rural-classroom/classroom/storeclient"
	"github.com/medhanag29/rural-classroom/classroom/wsclient"
)

var (
	_ Transport = (*wsclient.Client)(nil)
	_ Store     = (*storeclient.Client)(nil)
	_ Analyzer  = (*analysis.Client)(nil)
)

// Connect builds a Session on the HTTP store, the WebSocket transport and
// the analysis service described by cfg. The transport runs until ctx is
// cancelled or the returned stop function is called.
func Connect(ctx context.Context, cfg *ClientConfig, me Identity, notifier Notifier) (*Session, func()) {
	store := storeclient.New(cfg.StoreURL, cfg.Token, cfg.HTTPTimeout)
	analyzer := analysis.New(cfg.AnalysisURL, cfg.AnalysisTimeout)
	transport := wsclient.New(wsclient.Options{
		URL:          cfg.TransportURL,
		Token:        cfg.Token,
		Heartbeat:    cfg.Heartbeat,
		ReconnectMin: cfg.ReconnectMin,
		ReconnectMax: cfg.ReconnectMax,
	})

	session := NewSession(me, Options{
		Transport: transport,
		Store:     store,
		Analyzer:  analyzer,
		Notifier:  notifier,
		Language:  cfg.Language,
	})

	runCtx, cancel := context.WithCancel(ctx)
	go transport.Run(runCtx)

	stop := func() {
		session.Close()
		cancel()
		transport.Close()
	}
	return session, stop
}
