package install

import (
	"context"
	"fmt"
	"time"
)

const monitoringNamespace = `apiVersion: v1
kind: Namespace
metadata:
  name: openshift-monitoring
  labels:
    openshift.io/cluster-monitoring: "true"
    kubernetes.io/metadata.name: openshift-monitoring
`

const prometheusInstance = `apiVersion: v1
kind: ServiceAccount
metadata:
  name: prometheus
  namespace: openshift-monitoring
---
apiVersion: rbac.authorization.k8s.io/v1
kind: ClusterRole
metadata:
  name: prometheus
rules:
- apiGroups: [""]
  resources:
  - nodes
  - nodes/metrics
  - services
  - endpoints
  - pods
  verbs: ["get", "list", "watch"]
- apiGroups: [""]
  resources:
  - configmaps
  verbs: ["get"]
- apiGroups:
  - networking.k8s.io
  resources:
  - ingresses
  verbs: ["get", "list", "watch"]
- apiGroups:
  - monitoring.coreos.com
  resources:
  - servicemonitors
  - podmonitors
  - prometheusrules
  verbs: ["get", "list", "watch"]
- nonResourceURLs: ["/metrics"]
  verbs: ["get"]
---
apiVersion: rbac.authorization.k8s.io/v1
kind: ClusterRoleBinding
metadata:
  name: prometheus
roleRef:
  apiGroup: rbac.authorization.k8s.io
  kind: ClusterRole
  name: prometheus
subjects:
- kind: ServiceAccount
  name: prometheus
  namespace: openshift-monitoring
---
apiVersion: monitoring.coreos.com/v1
kind: Prometheus
metadata:
  name: prometheus
  namespace: openshift-monitoring
spec:
  serviceAccountName: prometheus
  replicas: 1
  logLevel: debug
  logFormat: logfmt
  retention: 2h
  resources:
    requests:
      memory: 400Mi
  enableAdminAPI: true
  serviceMonitorSelector: {}
  serviceMonitorNamespaceSelector: {}
  podMonitorSelector: {}
  podMonitorNamespaceSelector: {}
  ruleSelector: {}
  ruleNamespaceSelector: {}
---
apiVersion: v1
kind: Service
metadata:
  name: prometheus
  namespace: openshift-monitoring
  labels:
    app: prometheus
spec:
  type: NodePort
  ports:
  - name: web
    port: 9090
    targetPort: web
    nodePort: 30090
  selector:
    app.kubernetes.io/name: prometheus
    prometheus: prometheus
`

// Prometheus installs the Prometheus operator bundle, an openshift-monitoring
// namespace mirroring the OpenShift layout, and a Prometheus instance with
// debug logging, exposed on NodePort 30090.
func (in *Installer) Prometheus(ctx context.Context) error {
	version := in.Versions.PrometheusOperator
	in.Log.Info("Installing Prometheus Operator %s", version)

	url := fmt.Sprintf("https://github.com/prometheus-operator/prometheus-operator/releases/download/%s/bundle.yaml", version)
	manifest, err := in.fetch(ctx, url)
	if err != nil {
		return err
	}
	if err := in.Client.ApplyServerSide(ctx, manifest); err != nil {
		return err
	}

	if err := in.waitDeploymentExists(ctx, "prometheus-operator", "default", time.Minute); err != nil {
		return err
	}

	// Best effort; fails if the arg is already present.
	in.Client.Run(ctx, "patch", "deployment", "prometheus-operator", "-n", "default",
		"--type=json",
		"-p", `[{"op":"add","path":"/spec/template/spec/containers/0/args/-","value":"--log-level=debug"}]`)

	if err := in.waitDeployment(ctx, "prometheus-operator", "default", 5*time.Minute); err != nil {
		return err
	}

	if err := in.Client.Apply(ctx, []byte(monitoringNamespace)); err != nil {
		return err
	}
	if err := in.Client.Apply(ctx, []byte(prometheusInstance)); err != nil {
		return err
	}

	// The operator needs a moment to stamp out the StatefulSet.
	in.Client.WaitFor(ctx, "pod", "condition=ready", "openshift-monitoring", 5*time.Minute)

	in.Log.Success("Prometheus installed (NodePort 30090)")
	return nil
}
