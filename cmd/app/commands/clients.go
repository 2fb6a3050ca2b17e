package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"

	authDomain "github.com/allisson/rotator/internal/auth/domain"
	authUseCase "github.com/allisson/rotator/internal/auth/usecase"
)

var knownCapabilities = []authDomain.Capability{
	authDomain.ReadCapability,
	authDomain.WriteCapability,
	authDomain.DeleteCapability,
	authDomain.RotateCapability,
}

// RunCreateClient creates an API client. Policies come from policiesJSON, or are
// prompted for when it is empty. The bearer token is printed once.
func RunCreateClient(
	ctx context.Context,
	clientUseCase authUseCase.ClientUseCase,
	logger *slog.Logger,
	io IOTuple,
	name string,
	isActive bool,
	policiesJSON string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	logger.Info("creating new client", slog.String("name", name))

	policies, err := readPolicies(io, policiesJSON, nil)
	if err != nil {
		return err
	}

	output, err := clientUseCase.Create(ctx, &authDomain.CreateClientInput{
		Name:     name,
		IsActive: isActive,
		Policies: policies,
	})
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	if format == formatJSON {
		if err := writeJSON(io.Writer, map[string]string{
			"client_id": output.ID.String(),
			"token":     output.Token(),
		}); err != nil {
			return err
		}
	} else {
		_, _ = fmt.Fprintln(io.Writer, "\nClient created successfully!")
		_, _ = fmt.Fprintf(io.Writer, "Client ID: %s\n", output.ID)
		_, _ = fmt.Fprintf(io.Writer, "Token: %s\n", output.Token())
		_, _ = fmt.Fprintln(io.Writer, "\nIMPORTANT: The token is shown only once. Store it securely.")
	}

	logger.Info("client created successfully",
		slog.String("client_id", output.ID.String()),
		slog.String("name", name),
		slog.Bool("is_active", isActive),
	)
	return nil
}

// RunUpdateClient replaces the name, active flag and policies of a client. The
// secret is kept.
func RunUpdateClient(
	ctx context.Context,
	clientUseCase authUseCase.ClientUseCase,
	logger *slog.Logger,
	io IOTuple,
	clientIDStr string,
	name string,
	isActive bool,
	policiesJSON string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	logger.Info("updating client", slog.String("client_id", clientIDStr))

	clientID, err := uuid.Parse(clientIDStr)
	if err != nil {
		return fmt.Errorf("invalid client ID format: %w", err)
	}

	existing, err := clientUseCase.Get(ctx, clientID)
	if err != nil {
		return fmt.Errorf("failed to get existing client: %w", err)
	}

	policies, err := readPolicies(io, policiesJSON, existing.Policies)
	if err != nil {
		return err
	}

	if err := clientUseCase.Update(ctx, clientID, &authDomain.UpdateClientInput{
		Name:     name,
		IsActive: isActive,
		Policies: policies,
	}); err != nil {
		return fmt.Errorf("failed to update client: %w", err)
	}

	if format == formatJSON {
		if err := writeJSON(io.Writer, map[string]any{
			"client_id": clientID.String(),
			"name":      name,
			"is_active": isActive,
		}); err != nil {
			return err
		}
	} else {
		_, _ = fmt.Fprintln(io.Writer, "\nClient updated successfully!")
		_, _ = fmt.Fprintf(io.Writer, "Client ID: %s\n", clientID)
		_, _ = fmt.Fprintf(io.Writer, "Name: %s\n", name)
		_, _ = fmt.Fprintf(io.Writer, "Active: %t\n", isActive)
	}

	logger.Info("client updated successfully",
		slog.String("client_id", clientID.String()),
		slog.Bool("is_active", isActive),
	)
	return nil
}

// readPolicies parses policiesJSON, or runs the interactive prompt when it is empty.
func readPolicies(
	io IOTuple,
	policiesJSON string,
	current []authDomain.PolicyDocument,
) ([]authDomain.PolicyDocument, error) {
	var policies []authDomain.PolicyDocument
	if policiesJSON == "" {
		var err error
		policies, err = promptForPolicies(io, current)
		if err != nil {
			return nil, fmt.Errorf("failed to get policies: %w", err)
		}
	} else if err := json.Unmarshal([]byte(policiesJSON), &policies); err != nil {
		return nil, fmt.Errorf("failed to parse policies JSON: %w", err)
	}

	if len(policies) == 0 {
		return nil, fmt.Errorf("at least one policy is required")
	}
	for _, policy := range policies {
		if !strings.HasPrefix(policy.Path, "/") && policy.Path != "*" {
			return nil, fmt.Errorf("invalid policy path %q: must be absolute or *", policy.Path)
		}
		for _, capability := range policy.Capabilities {
			if !slices.Contains(knownCapabilities, capability) {
				return nil, fmt.Errorf("unknown capability %q", capability)
			}
		}
	}
	return policies, nil
}

// promptForPolicies asks for policy documents until the operator declines another.
// current, when set, is listed first.
func promptForPolicies(io IOTuple, current []authDomain.PolicyDocument) ([]authDomain.PolicyDocument, error) {
	reader := bufio.NewReader(io.Reader)
	writer := io.Writer

	if len(current) > 0 {
		_, _ = fmt.Fprintln(writer, "\nCurrent policies:")
		for i, policy := range current {
			_, _ = fmt.Fprintf(writer, "  %d. Path: %s, Capabilities: [%s]\n",
				i+1, policy.Path, joinCapabilities(policy.Capabilities))
		}
	}

	_, _ = fmt.Fprintln(writer, "\nEnter policies for the client")
	_, _ = fmt.Fprintf(writer, "Available capabilities: %s\n", joinCapabilities(knownCapabilities))
	_, _ = fmt.Fprintln(writer)

	var policies []authDomain.PolicyDocument
	for policyNum := 1; ; policyNum++ {
		_, _ = fmt.Fprintf(writer, "Policy #%d\n", policyNum)

		path, err := prompt(reader, writer, "Enter path pattern (e.g., '/projects/billing/*' or '*'): ")
		if err != nil {
			return nil, fmt.Errorf("failed to read path: %w", err)
		}
		if path == "" {
			return nil, fmt.Errorf("path cannot be empty")
		}

		capsInput, err := prompt(reader, writer, "Enter capabilities (comma-separated, e.g., 'read,write'): ")
		if err != nil {
			return nil, fmt.Errorf("failed to read capabilities: %w", err)
		}
		capabilities, err := parseCapabilities(capsInput)
		if err != nil {
			return nil, err
		}

		policies = append(policies, authDomain.PolicyDocument{Path: path, Capabilities: capabilities})

		again, err := prompt(reader, writer, "Add another policy? (y/n): ")
		if err != nil {
			return nil, fmt.Errorf("failed to read input: %w", err)
		}
		if again = strings.ToLower(again); again != "y" && again != "yes" {
			return policies, nil
		}
		_, _ = fmt.Fprintln(writer)
	}
}

func prompt(reader *bufio.Reader, writer io.Writer, label string) (string, error) {
	_, _ = fmt.Fprint(writer, label)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// parseCapabilities converts a comma-separated string into capabilities.
func parseCapabilities(input string) ([]authDomain.Capability, error) {
	parts := strings.Split(input, ",")
	capabilities := make([]authDomain.Capability, 0, len(parts))

	for _, part := range parts {
		if c := authDomain.Capability(strings.TrimSpace(part)); c != "" {
			capabilities = append(capabilities, c)
		}
	}

	if len(capabilities) == 0 {
		return nil, fmt.Errorf("at least one capability is required")
	}
	return capabilities, nil
}

func joinCapabilities(capabilities []authDomain.Capability) string {
	names := make([]string, len(capabilities))
	for i, c := range capabilities {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}
