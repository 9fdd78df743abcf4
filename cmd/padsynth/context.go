package main

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"padsynth/internal/api"
	"padsynth/internal/config"
	"padsynth/internal/mapping"
)

type commandContext struct {
	configFlag *string
	addrFlag   *string
	tokenFlag  *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, addrFlag, tokenFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		addrFlag:   addrFlag,
		tokenFlag:  tokenFlag,
	}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// apiAddress resolves --addr, then api.bind, then the mapping document's
// app section. Wildcard hosts are dialed on loopback.
func (c *commandContext) apiAddress() string {
	if c.addrFlag != nil {
		if addr := strings.TrimSpace(*c.addrFlag); addr != "" {
			return addr
		}
	}
	cfg := c.configValue()
	app := mapping.DefaultApp()
	if cfg != nil {
		if doc, err := mapping.NewStore(cfg.Paths.MappingFile).Load(); err == nil {
			app = doc.App
		}
	}
	addr := net.JoinHostPort(app.WebHost, strconv.Itoa(app.WebPort))
	if cfg != nil {
		addr = cfg.ListenAddress(app.WebHost, app.WebPort)
	}
	return dialableAddress(addr)
}

func dialableAddress(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

func (c *commandContext) apiToken() string {
	if c.tokenFlag != nil {
		if token := strings.TrimSpace(*c.tokenFlag); token != "" {
			return token
		}
	}
	if cfg := c.configValue(); cfg != nil {
		return strings.TrimSpace(cfg.API.Token)
	}
	return ""
}

func (c *commandContext) apiClient() (*api.Client, error) {
	return api.NewClient(c.apiAddress(), c.apiToken())
}

func (c *commandContext) withClient(fn func(*api.Client) error) error {
	client, err := c.apiClient()
	if err != nil {
		return err
	}
	if err := fn(client); err != nil {
		return wrapDialError(err, client.BaseURL())
	}
	return nil
}

func wrapDialError(err error, base string) error {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connect to daemon: %s refused the connection; start the daemon with `padsynth start`", base)
	case errors.Is(err, os.ErrDeadlineExceeded):
		return fmt.Errorf("connect to daemon: %s timed out; verify the daemon is running", base)
	default:
		return fmt.Errorf("connect to daemon: %w", err)
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
