package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openshift-eng/kueue-dev/src/kube"
	"github.com/openshift-eng/kueue-dev/src/prereqs"
)

const (
	menuPortForward  = "Port-forward Prometheus (localhost:9090)"
	menuOperatorLogs = "Tail operator logs"
	menuOperandLogs  = "Tail kueue controller logs"
	menuPromOperator = "Tail prometheus-operator logs"
	menuPromInstance = "Tail Prometheus instance logs"
	menuClusterInfo  = "Show cluster info"
	menuKubectlShell = "kubectl shell"
	menuQuit         = "Quit"
)

var interactiveCmd = &cobra.Command{
	Use:     "interactive",
	Aliases: []string{"i"},
	Short:   "Interactive debugging menu for a deployed cluster",
	RunE:    runInteractive,
}

func init() {
	rootCmd.AddCommand(interactiveCmd)
}

func runInteractive(cmd *cobra.Command, args []string) error {
	if err := prereqs.Ensure("kubectl"); err != nil {
		return err
	}
	source, err := sourceRoot()
	if err != nil {
		return err
	}
	kubeconfig, err := requireKubeconfig(source)
	if err != nil {
		return err
	}

	client := newClient(kubeconfig)
	client.Stdout = os.Stdout
	client.Stderr = os.Stderr
	prompter := newPrompter()
	if prompter.AutoConfirm {
		return fmt.Errorf("interactive mode needs a terminal; auto-confirm is enabled")
	}

	options := []string{
		menuPortForward,
		menuOperatorLogs,
		menuOperandLogs,
		menuPromOperator,
		menuPromInstance,
		menuClusterInfo,
		menuKubectlShell,
		menuQuit,
	}

	for {
		choice, err := prompter.Select("What do you want to do?", options)
		if err != nil {
			return err
		}

		switch choice {
		case menuPortForward:
			log.Info("Forwarding Prometheus to localhost:9090 (Ctrl+C to stop)")
			client.Run(cmd.Context(), "port-forward", "-n", "openshift-monitoring",
				"svc/prometheus", "9090:9090")
		case menuOperatorLogs:
			client.Run(cmd.Context(), "logs", "-n", "openshift-kueue-operator",
				"-l", "name=openshift-kueue-operator", "-f", "--tail=100")
		case menuOperandLogs:
			client.Run(cmd.Context(), "logs", "-n", "openshift-kueue-operator",
				"-l", "app.kubernetes.io/name=kueue", "-f", "--tail=100")
		case menuPromOperator:
			client.Run(cmd.Context(), "logs", "-n", "default",
				"-l", "app.kubernetes.io/name=prometheus-operator", "-f", "--tail=100")
		case menuPromInstance:
			client.Run(cmd.Context(), "logs", "-n", "openshift-monitoring",
				"-l", "app.kubernetes.io/name=prometheus", "-f", "--tail=100")
		case menuClusterInfo:
			showClusterInfo(cmd.Context(), client)
		case menuKubectlShell:
			if err := kubectlShell(cmd.Context(), client); err != nil {
				return err
			}
		case menuQuit:
			return nil
		}
	}
}

// showClusterInfo dumps the resources someone debugging a deployment asks
// about first. Errors are visible in the passthrough output already.
func showClusterInfo(ctx context.Context, client *kube.Client) {
	for _, args := range [][]string{
		{"get", "nodes", "-o", "wide"},
		{"get", "deployments", "-n", "openshift-kueue-operator"},
		{"get", "pods", "-n", "openshift-kueue-operator"},
		{"get", "svc", "-n", "openshift-kueue-operator"},
	} {
		fmt.Printf("\n$ kubectl %s\n", strings.Join(args, " "))
		client.Run(ctx, args...)
	}
}

// kubectlShell reads kubectl argument lines until exit or EOF. Command
// failures print and the loop continues.
func kubectlShell(ctx context.Context, client *kube.Client) error {
	fmt.Println("kubectl shell. Type arguments without the kubectl prefix, 'exit' to leave.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("kubectl> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}
		if err := client.Run(ctx, strings.Fields(line)...); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}
