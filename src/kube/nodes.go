package kube

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// LabelWorkers tags worker nodes with instance-type labels the e2e suites
// select on: the first worker (sorted by name) becomes on-demand, the rest
// spot.
func LabelWorkers(ctx context.Context, c *Client) ([]string, error) {
	all, err := c.Output(ctx, "get", "nodes", "-o", "name")
	if err != nil {
		return nil, fmt.Errorf("getting nodes: %w", err)
	}

	controlPlane, _ := c.Output(ctx, "get", "nodes",
		"-l", "node-role.kubernetes.io/control-plane", "-o", "name")
	cpSet := map[string]bool{}
	for _, line := range strings.Split(controlPlane, "\n") {
		cpSet[nodeName(line)] = true
	}

	var workers []string
	for _, line := range strings.Split(all, "\n") {
		name := nodeName(line)
		if name != "" && !cpSet[name] {
			workers = append(workers, name)
		}
	}
	if len(workers) == 0 {
		return nil, nil
	}
	sort.Strings(workers)

	for i, node := range workers {
		instanceType := "spot"
		if i == 0 {
			instanceType = "on-demand"
		}
		if err := c.LabelNode(ctx, node, "instance-type="+instanceType); err != nil {
			return nil, fmt.Errorf("labeling node %s: %w", node, err)
		}
	}
	return workers, nil
}

func nodeName(line string) string {
	return strings.TrimPrefix(strings.TrimSpace(line), "node/")
}
