package kube

import (
	"context"
	"strings"

	"github.com/openshift-eng/kueue-dev/src/output"
)

// clearFinalizers is the merge patch that unblocks deletion of kueue-owned
// resources whose controller is already gone.
const clearFinalizers = `{"metadata":{"finalizers":[]}}`

// e2e suite namespace prefixes, one per workload integration.
var testNamespacePrefixes = []string{
	"e2e-", "sts-e2e-", "deployment-e2e-", "lws-e2e-", "pod-e2e-", "jobset-e2e-",
}

// kueue resource types the suites leave behind, cluster scoped unless noted.
var kueueResourceTypes = []string{
	"workloadpriorityclass",
	"clusterqueue",
	"localqueue",
	"resourceflavor",
	"cohort",
	"admissioncheck",
}

// CleanupTestResources removes everything the e2e suites leave behind:
// kueue CRs with their finalizers stripped, test workloads, and the
// per-suite namespaces. Individual failures are skipped; a partially
// deleted cluster is still better than a stuck one.
func CleanupTestResources(ctx context.Context, c *Client, log *output.Logger) error {
	cleanupPriorityClasses(ctx, c, log)

	for _, rt := range kueueResourceTypes {
		cleanupResourceType(ctx, c, log, rt)
	}

	namespaces := testNamespaces(ctx, c)
	for _, ns := range namespaces {
		cleanupWorkloads(ctx, c, log, ns)
	}
	cleanupNamespaces(ctx, c, log, namespaces)

	log.Success("Cleanup complete")
	return nil
}

// cleanupResourceType strips finalizers from every instance then deletes the
// lot. Unknown resource types (CRDs already gone) are silently skipped.
func cleanupResourceType(ctx context.Context, c *Client, log *output.Logger, resourceType string) {
	out, err := c.Output(ctx, "get", resourceType, "--all-namespaces", "-o", "name")
	if err != nil || strings.TrimSpace(out) == "" {
		return
	}

	log.Info("Deleting %s resources", resourceType)
	for _, resource := range strings.Split(out, "\n") {
		resource = strings.TrimSpace(resource)
		if resource == "" {
			continue
		}
		c.Run(ctx, "patch", resource, "--type=merge", "-p", clearFinalizers)
	}
	c.Run(ctx, "delete", resourceType, "--all", "--all-namespaces", "--ignore-not-found")
}

// cleanupPriorityClasses deletes test PriorityClasses, sparing the built-in
// system- ones.
func cleanupPriorityClasses(ctx context.Context, c *Client, log *output.Logger) {
	out, err := c.Output(ctx, "get", "priorityclasses", "-o", "name")
	if err != nil {
		return
	}

	for _, pc := range strings.Split(out, "\n") {
		pc = strings.TrimSpace(pc)
		if pc == "" || strings.Contains(pc, "system-") {
			continue
		}
		log.Info("Deleting %s", pc)
		c.Run(ctx, "patch", pc, "--type=merge", "-p", clearFinalizers)
		c.Run(ctx, "delete", pc, "--ignore-not-found")
	}
}

// testNamespaces lists namespaces created by the e2e suites.
func testNamespaces(ctx context.Context, c *Client) []string {
	out, err := c.Output(ctx, "get", "ns", "-o", "name")
	if err != nil {
		return nil
	}

	var matched []string
	for _, line := range strings.Split(out, "\n") {
		name := strings.TrimPrefix(strings.TrimSpace(line), "namespace/")
		if name == "" {
			continue
		}
		for _, prefix := range testNamespacePrefixes {
			if strings.Contains(name, prefix) {
				matched = append(matched, name)
				break
			}
		}
	}
	return matched
}

// cleanupWorkloads strips finalizers from and deletes Workloads in one
// namespace.
func cleanupWorkloads(ctx context.Context, c *Client, log *output.Logger, namespace string) {
	out, err := c.Output(ctx, "get", "workloads", "-n", namespace, "-o", "name")
	if err != nil || strings.TrimSpace(out) == "" {
		return
	}

	log.Info("Deleting workloads in %s", namespace)
	for _, wl := range strings.Split(out, "\n") {
		wl = strings.TrimSpace(wl)
		if wl == "" {
			continue
		}
		c.Run(ctx, "patch", wl, "-n", namespace, "--type=merge", "-p", clearFinalizers)
	}
	c.Run(ctx, "delete", "workloads", "-n", namespace, "--all", "--ignore-not-found")
}

// cleanupNamespaces strips finalizers from and deletes the test namespaces.
func cleanupNamespaces(ctx context.Context, c *Client, log *output.Logger, namespaces []string) {
	for _, ns := range namespaces {
		log.Info("Deleting namespace %s", ns)
		c.Run(ctx, "patch", "namespace/"+ns, "--type=merge", "-p", clearFinalizers)
		c.Run(ctx, "delete", "namespace/"+ns, "--ignore-not-found")
	}
}
