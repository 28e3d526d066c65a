// Package internaldefs maps engine metric IDs onto the label sets shared by
// the Prometheus and OTel exporters, so both publish the same operations,
// outcomes, events and latency bucket bounds.
package internaldefs
