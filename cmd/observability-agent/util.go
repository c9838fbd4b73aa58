package main

import "github.com/scoutflo/platform-observability-agent/pkg/platform"

func sumIaC(counts map[platform.IaCSource]int) int {
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}
