package mediaclient

import (
	"context"
	"fmt"

	"github.com/sir_venger/mediagate/pkg/mediaproto"
)

// KindDialer выбирает транспорт по виду endpoint'а.
type KindDialer struct {
	byKind map[mediaproto.EndpointKind]mediaproto.Dialer
}

func NewKindDialer(node, s3 mediaproto.Dialer) *KindDialer {
	return &KindDialer{byKind: map[mediaproto.EndpointKind]mediaproto.Dialer{
		"":                  node,
		mediaproto.KindNode: node,
		mediaproto.KindS3:   s3,
	}}
}

func (k *KindDialer) pick(ep mediaproto.Endpoint) (mediaproto.Dialer, error) {
	d, ok := k.byKind[ep.Kind]
	if !ok || d == nil {
		return nil, fmt.Errorf("no transport for endpoint kind %q", ep.Kind)
	}
	return d, nil
}

func (k *KindDialer) CreateAuthKey(ctx context.Context, ep mediaproto.Endpoint) (mediaproto.AuthKey, error) {
	d, err := k.pick(ep)
	if err != nil {
		return "", err
	}
	return d.CreateAuthKey(ctx, ep)
}

func (k *KindDialer) Dial(ctx context.Context, ep mediaproto.Endpoint, key mediaproto.AuthKey) (mediaproto.Session, error) {
	d, err := k.pick(ep)
	if err != nil {
		return nil, err
	}
	return d.Dial(ctx, ep, key)
}
