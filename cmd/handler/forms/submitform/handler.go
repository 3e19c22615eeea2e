package main

import (
	"github.com/cdl-rdv/formrelay/pkg/relay"
	"github.com/cdl-rdv/formrelay/pkg/relaylib"
)

var forwarder *relay.Forwarder

func Handler(env *relaylib.Env) relaylib.Response {
	return forwarder.Handle(env)
}
