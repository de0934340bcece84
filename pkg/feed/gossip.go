// Package feed publishes committed vault observations to a libp2p gossipsub
// topic so downstream consumers (risk monitors, indexers) can follow custody
// activity without polling the REST API.
package feed

import (
	"context"
	"encoding/json"

	libp2p "github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"

	"github.com/solera-fi/vaultd/pkg/vault"
)

const TopicObservations = "vaultd-observations"

// Publisher implements vault.Sink over a gossipsub topic. Publishing is
// best-effort: a failed publish is logged, never surfaced to the vault.
type Publisher struct {
	h     host.Host
	ps    *pubsub.PubSub
	topic *pubsub.Topic
	ctx   context.Context
	log   *zap.SugaredLogger
}

type Config struct {
	ListenAddr string
	Bootstrap  []string
	Logger     *zap.SugaredLogger
}

func NewPublisher(ctx context.Context, cfg Config) (*Publisher, error) {
	var opts []libp2p.Option
	if cfg.ListenAddr != "" {
		maddr, err := ma.NewMultiaddr(cfg.ListenAddr)
		if err != nil {
			return nil, err
		}
		opts = append(opts, libp2p.ListenAddrs(maddr))
	}
	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, err
	}
	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		h.Close()
		return nil, err
	}

	for _, bs := range cfg.Bootstrap {
		if err := connectMultiaddr(ctx, h, bs); err != nil && cfg.Logger != nil {
			cfg.Logger.Warnw("bootstrap_connect_failed", "addr", bs, "err", err)
		}
	}

	topic, err := ps.Join(TopicObservations)
	if err != nil {
		h.Close()
		return nil, err
	}

	if cfg.Logger != nil {
		cfg.Logger.Infow("gossip_ready", "peer", h.ID().String(), "listen", cfg.ListenAddr)
	}
	return &Publisher{h: h, ps: ps, topic: topic, ctx: ctx, log: cfg.Logger}, nil
}

func connectMultiaddr(ctx context.Context, h host.Host, addr string) error {
	m, err := ma.NewMultiaddr(addr)
	if err != nil {
		return err
	}
	info, err := peer.AddrInfoFromP2pAddr(m)
	if err != nil {
		return err
	}
	return h.Connect(ctx, *info)
}

// Publish implements vault.Sink.
func (p *Publisher) Publish(obs vault.Observation) {
	data, err := json.Marshal(obs)
	if err != nil {
		if p.log != nil {
			p.log.Warnw("gossip_marshal_failed", "err", err)
		}
		return
	}
	if err := p.topic.Publish(p.ctx, data); err != nil && p.log != nil {
		p.log.Warnw("gossip_publish_failed", "seq", obs.Seq, "err", err)
	}
}

// Host exposes the underlying libp2p host (peer id, addrs).
func (p *Publisher) Host() host.Host { return p.h }

func (p *Publisher) Close() error {
	if err := p.topic.Close(); err != nil {
		p.h.Close()
		return err
	}
	return p.h.Close()
}
