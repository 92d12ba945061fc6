// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package registry

import (
	"context"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/status"

	pb "deps.dev/api/v3"
)

// DefaultAPIAddr is the address of the deps.dev gRPC API.
const DefaultAPIAddr = "api.deps.dev:443"

// DefaultPyPIURL is the base URL of the PyPI JSON API.
const DefaultPyPIURL = "https://pypi.org"

// APIClient is a Client that lists versions through the deps.dev API and
// reads requirements from the PyPI JSON API, since deps.dev does not serve
// PyPI requirements. If a release declares Requires-Python, it is reported
// as an extra requirement on the "python" package. It performs no caching
// and is safe for concurrent use.
type APIClient struct {
	c pb.InsightsClient

	// HTTP is used for PyPI requests.
	HTTP *http.Client
	// PyPIURL is the base URL of the PyPI JSON API.
	PyPIURL string
}

// NewAPIClient creates a new APIClient using the provided gRPC client to
// call the deps.dev Insights service.
func NewAPIClient(c pb.InsightsClient) *APIClient {
	return &APIClient{c: c, HTTP: http.DefaultClient, PyPIURL: DefaultPyPIURL}
}

// Dial connects to the deps.dev API at addr over TLS, trusting the system
// certificate pool.
func Dial(addr string) (*grpc.ClientConn, error) {
	certPool, err := x509.SystemCertPool()
	if err != nil {
		return nil, fmt.Errorf("getting system cert pool: %w", err)
	}
	creds := credentials.NewClientTLSFromCert(certPool, "")
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}
	return conn, nil
}

// Versions implements Client.
func (a *APIClient) Versions(ctx context.Context, name string) ([]string, error) {
	resp, err := a.c.GetPackage(ctx, &pb.GetPackageRequest{
		PackageKey: &pb.PackageKey{
			System: pb.System_PYPI,
			Name:   name,
		},
	})
	if status.Code(err) == codes.NotFound {
		return nil, fmt.Errorf("package %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return packageVersions(resp), nil
}

// packageVersions extracts the version strings of a GetPackage response.
func packageVersions(p *pb.Package) []string {
	vs := make([]string, 0, len(p.GetVersions()))
	for _, v := range p.GetVersions() {
		if ver := v.GetVersionKey().GetVersion(); ver != "" {
			vs = append(vs, ver)
		}
	}
	return vs
}

// release is the part of a PyPI JSON API release document we read.
type release struct {
	Info struct {
		RequiresDist   []string `json:"requires_dist"`
		RequiresPython string   `json:"requires_python"`
	} `json:"info"`
}

// Requirements implements Client.
func (a *APIClient) Requirements(ctx context.Context, name, ver string) ([]string, error) {
	u := fmt.Sprintf("%s/pypi/%s/%s/json", strings.TrimSuffix(a.PyPIURL, "/"), url.PathEscape(name), url.PathEscape(ver))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := a.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("version %s %s: %w", name, ver, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("version %s %s: pypi returned %s", name, ver, resp.Status)
	}
	return releaseRequirements(resp.Body)
}

// releaseRequirements reads a PyPI release document and returns its
// requirements, with Requires-Python turned into a "python" requirement.
func releaseRequirements(r io.Reader) ([]string, error) {
	var rel release
	if err := json.NewDecoder(r).Decode(&rel); err != nil {
		return nil, fmt.Errorf("decoding pypi release: %w", err)
	}
	reqs := rel.Info.RequiresDist
	if rp := strings.TrimSpace(rel.Info.RequiresPython); rp != "" {
		reqs = append(reqs, "python "+rp)
	}
	return reqs, nil
}
