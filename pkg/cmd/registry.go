// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"
	"net/http"

	"github.com/aubira/flowd/pkg/aiproxy"
	"github.com/aubira/flowd/pkg/processors"
	"github.com/aubira/flowd/pkg/processors/aiagent"
	"github.com/aubira/flowd/pkg/processors/conditional"
	"github.com/aubira/flowd/pkg/processors/datatransform"
	"github.com/aubira/flowd/pkg/processors/httpcall"
	"github.com/aubira/flowd/pkg/processors/notification"
	"github.com/aubira/flowd/pkg/processors/trigger"
)

func registerAll(reg *processors.Registry, types []string, processor processors.Processor) {
	for _, nodeType := range types {
		reg.Register(nodeType, processor)
	}
}

// NewRegistry builds a processor registry with every native processor bound
// to all of its type tags.
func NewRegistry(logger *slog.Logger, proxy *aiproxy.Proxy) *processors.Registry {
	reg := processors.NewRegistry(logger)

	registerAll(reg, trigger.Types(), trigger.New(logger))
	registerAll(reg, conditional.Types(), conditional.New(logger))
	registerAll(reg, datatransform.Types(), datatransform.New(logger))
	registerAll(reg, httpcall.Types(), httpcall.New(http.DefaultClient, logger))
	registerAll(reg, notification.Types(), notification.New(notification.NewMockMailer(), logger))
	registerAll(reg, aiagent.Types(), aiagent.New(proxy, logger))

	return reg
}
