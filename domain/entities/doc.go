// Package entities provides the data model shared by hosts and loader plugins:
// signal descriptors, cycle ranges, the bit-packed WaveData frame store and
// the library Header.
package entities
