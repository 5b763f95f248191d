package gateway

import "errors"

var ErrGatewayNotSupported = errors.New("gateway is not supported")

type Registry struct {
	gateways map[int32]Gateway
}

func NewRegistry(gateways ...Gateway) *Registry {
	items := make(map[int32]Gateway, len(gateways))
	for _, g := range gateways {
		items[g.Code()] = g
	}
	return &Registry{gateways: items}
}

func (r *Registry) Get(code int32) (Gateway, error) {
	gw, ok := r.gateways[code]
	if !ok {
		return nil, ErrGatewayNotSupported
	}
	return gw, nil
}
