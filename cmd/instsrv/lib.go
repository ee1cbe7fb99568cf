package main

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/spmlab/goinst/attocube"
	"github.com/spmlab/goinst/server"
	"github.com/spmlab/goinst/server/middleware/locker"
	"github.com/spmlab/goinst/srs"
)

// ObjSetup holds the typical args for a New<device> call.
type ObjSetup struct {
	// Addr holds the network or filesystem address of the remote device,
	// e.g. 192.168.100.123:2006 for a device connected to port 6
	// on a digi portserver, or /dev/ttyS4 for an RS232 device on a serial cable
	Addr string `yaml:"addr" koanf:"addr"`

	// Endpoint is the path the routes from this device will be served under
	Endpoint string `yaml:"endpoint" koanf:"endpoint"`

	// Serial determines if the connection is serial/RS232 (True) or TCP (False)
	Serial bool `yaml:"serial" koanf:"serial"`

	// Mock substitutes an in-memory device, positioners only
	Mock bool `yaml:"mock" koanf:"mock"`

	// Lock adds a lock route and 423 middleware so one user can
	// reserve the device during a measurement
	Lock bool `yaml:"lock" koanf:"lock"`
}

// Config holds the initialization parameters for the served devices
type Config struct {
	// Addr is the address to listen at
	Addr string `yaml:"addr" koanf:"addr"`

	// Lockins are SR830 lock-in amplifiers
	Lockins []ObjSetup `yaml:"lockins" koanf:"lockins"`

	// Positioners are ANC350 nanopositioners
	Positioners []ObjSetup `yaml:"positioners" koanf:"positioners"`
}

// BuildMux constructs the root router with one goji mux mounted per device
func BuildMux(c Config) (http.Handler, func(), error) {
	root := chi.NewRouter()
	root.Use(middleware.RequestID)
	root.Use(middleware.Logger)
	root.Use(middleware.Recoverer)

	var closers []func() error
	cleanup := func() {
		for _, cl := range closers {
			if err := cl(); err != nil {
				log.WithError(err).Error("teardown failure, a device handle may have leaked")
			}
		}
	}

	for _, setup := range c.Lockins {
		amp := srs.NewSR830(setup.Addr, setup.Serial)
		closers = append(closers, amp.Close)
		wrap := srs.NewHTTPWrapper(amp)
		mount(root, setup.Endpoint, lockable(wrap, setup.Lock))
		log.WithField("endpoint", setup.Endpoint).Info("serving SR830 at ", setup.Addr)
	}

	for _, setup := range c.Positioners {
		var (
			gw  attocube.Gateway
			err error
		)
		if setup.Mock {
			gw = attocube.NewMock()
		} else {
			gw, err = attocube.SystemGateway()
			if err != nil {
				cleanup()
				return nil, nil, err
			}
		}
		pos, err := attocube.New(gw)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, pos.Close)
		wrap := attocube.NewHTTPWrapper(pos)
		mount(root, setup.Endpoint, lockable(wrap, setup.Lock))
		log.WithField("endpoint", setup.Endpoint).Info("serving ANC350")
	}

	return root, cleanup, nil
}

// lockable builds the device mux, with the lock route and 423 middleware
// injected when requested
func lockable(h server.HTTPer, lock bool) http.Handler {
	if !lock {
		return server.BuildMux(h)
	}
	l := locker.New()
	locker.Inject(h, l)
	return l.Check(server.BuildMux(h))
}

func mount(root chi.Router, endpoint string, h http.Handler) {
	if endpoint == "" || endpoint[0] != '/' {
		endpoint = "/" + endpoint
	}
	root.Mount(endpoint, http.StripPrefix(endpoint, h))
}
