// Package simulation drives a power-flow engine through a fixed horizon,
// applying a dispatch policy before every solve and recording one StepRecord
// per step.
package simulation
