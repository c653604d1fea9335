package domain

import "time"

// Network represents an engine network.
type Network struct {
	Name       string
	ID         string
	Created    time.Time
	Scope      string // local, global, swarm
	Driver     string
	Internal   bool
	Attachable bool
	Containers map[string]EndpointResource
	Labels     map[string]string
}

// EndpointResource contains network endpoint resources.
type EndpointResource struct {
	Name        string
	EndpointID  string
	IPv4Address string
}

// NetworkListOptions represents options for listing networks.
type NetworkListOptions struct {
	Filters map[string][]string
}

// NetworkCreateOptions represents options for creating a network.
type NetworkCreateOptions struct {
	Driver     string
	Internal   bool
	Attachable bool
	Labels     map[string]string
}
