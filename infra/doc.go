// Package infra contains technical adapters: the feeder power-flow engine,
// profile readers, the MQTT publisher and the metrics exporters. These
// packages should depend only on the interfaces defined in the core packages.
package infra
