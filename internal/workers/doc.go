// Package workers computes bounded worker-pool sizes for the scanner.
package workers
