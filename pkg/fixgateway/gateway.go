package fixgateway

import (
	"fmt"
	"os"

	"github.com/quickfixgo/quickfix"
	"github.com/quickfixgo/quickfix/log/file"

	"github.com/joripage/limitcore/pkg/logging"
	"github.com/joripage/limitcore/pkg/oms"
)

// Gateway owns the quickfix acceptor lifecycle for one FIX 4.4 session
// group, translating NewOrderSingle/OrderCancelRequest traffic into
// OMS.AddOrder/CancelOrder calls and ExecutionReports back.
type Gateway struct {
	app      *application
	acceptor *quickfix.Acceptor
}

// NewGateway builds a Gateway bound to o. Call Start with the path to a
// quickfix session config file to begin accepting connections.
func NewGateway(o *oms.OMS, logger *logging.Logger) *Gateway {
	return &Gateway{app: newApplication(o, logger)}
}

// Start reads the quickfix settings file at configPath, opens an
// acceptor, and begins listening for sessions.
func (g *Gateway) Start(configPath string) error {
	cfg, err := os.Open(configPath)
	if err != nil {
		return fmt.Errorf("fixgateway: open config: %w", err)
	}
	defer cfg.Close()

	settings, err := quickfix.ParseSettings(cfg)
	if err != nil {
		return fmt.Errorf("fixgateway: parse settings: %w", err)
	}

	logFactory, err := file.NewLogFactory(settings)
	if err != nil {
		return fmt.Errorf("fixgateway: log factory: %w", err)
	}

	acceptor, err := quickfix.NewAcceptor(g.app, quickfix.NewMemoryStoreFactory(), settings, logFactory)
	if err != nil {
		return fmt.Errorf("fixgateway: new acceptor: %w", err)
	}
	if err := acceptor.Start(); err != nil {
		return fmt.Errorf("fixgateway: start acceptor: %w", err)
	}

	g.acceptor = acceptor
	return nil
}

// Stop tears down all active FIX sessions.
func (g *Gateway) Stop() {
	if g.acceptor != nil {
		g.acceptor.Stop()
	}
}
