// Package json stores scans as JSON documents on disk: one directory per
// scan holding scan.json next to the rendered report artifacts.
package json

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/adsecurecheck/adaudit/internal/audit"
	"github.com/adsecurecheck/adaudit/internal/directory"
	"github.com/adsecurecheck/adaudit/internal/scan"
	"github.com/adsecurecheck/adaudit/internal/shared/constants"
	sharedErrors "github.com/adsecurecheck/adaudit/internal/shared/errors"
	"github.com/adsecurecheck/adaudit/internal/shared/security"
)

const scanFileName = "scan.json"

// affectedItemDTO flattens every AffectedItem variant into one record; Kind
// selects which fields are meaningful on the way back in.
type affectedItemDTO struct {
	Kind        string            `json:"kind"`
	Username    string            `json:"username,omitempty"`
	LastLogon   string            `json:"last_logon,omitempty"`
	Status      string            `json:"status,omitempty"`
	UserDN      string            `json:"user_dn,omitempty"`
	Group       string            `json:"group,omitempty"`
	Policy      string            `json:"policy,omitempty"`
	Current     string            `json:"current_value,omitempty"`
	Recommended string            `json:"recommended_value,omitempty"`
	Server      string            `json:"server,omitempty"`
	DN          string            `json:"dn,omitempty"`
	Record      map[string]string `json:"record,omitempty"`
}

type findingDTO struct {
	Severity       string            `json:"severity"`
	Title          string            `json:"title"`
	Description    string            `json:"description"`
	CVE            string            `json:"cve,omitempty"`
	AffectedItems  []affectedItemDTO `json:"affected_items,omitempty"`
	Recommendation string            `json:"recommendation"`
}

type domainInfoDTO struct {
	DomainName        string `json:"domain_name"`
	DistinguishedName string `json:"distinguished_name,omitempty"`
	BaseDN            string `json:"base_dn,omitempty"`
	MinPwdLength      int    `json:"min_pwd_length,omitempty"`
}

// scanDTO is the persisted shape of one scan. Credentials are never part
// of the aggregate and therefore never reach disk.
type scanDTO struct {
	ID          string            `json:"id"`
	Server      string            `json:"server"`
	Domain      string            `json:"domain"`
	DomainInfo  domainInfoDTO     `json:"domain_info"`
	StartedAt   string            `json:"started_at,omitempty"`
	CompletedAt string            `json:"completed_at,omitempty"`
	Status      string            `json:"status"`
	Error       string            `json:"error,omitempty"`
	Findings    []findingDTO      `json:"findings"`
	Stats       audit.Statistics  `json:"statistics"`
	Artifacts   map[string]string `json:"artifacts,omitempty"`
}

// ScanRepository implements scan.Repository on top of a data directory.
type ScanRepository struct {
	scansDir string
	mu       sync.RWMutex
}

// NewScanRepository creates the repository, materializing the scans
// directory under dataDir.
func NewScanRepository(dataDir string) (*ScanRepository, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory cannot be empty")
	}

	scansDir, err := security.ResolveWithin(dataDir, "scans")
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(scansDir, constants.DefaultDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create scans directory: %w", err)
	}

	return &ScanRepository{scansDir: scansDir}, nil
}

// Save persists a scan, creating or replacing its scan.json.
func (r *ScanRepository) Save(sc *scan.Scan) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dir, err := security.ResolveWithin(r.scansDir, sc.ID())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, constants.DefaultDirPerm); err != nil {
		return fmt.Errorf("failed to create scan directory: %w", err)
	}

	data, err := json.MarshalIndent(toDTO(sc), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode scan: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, scanFileName), data, constants.DefaultFilePerm); err != nil {
		return fmt.Errorf("failed to save scan: %w", err)
	}
	return nil
}

// SaveArtifact writes one rendered report next to scan.json and returns
// the absolute location.
func (r *ScanRepository) SaveArtifact(scanID, filename string, payload []byte) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	path, err := security.ResolveWithin(r.scansDir, scanID, filename)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), constants.DefaultDirPerm); err != nil {
		return "", fmt.Errorf("failed to create scan directory: %w", err)
	}
	if err := os.WriteFile(path, payload, constants.DefaultFilePerm); err != nil {
		return "", fmt.Errorf("failed to save artifact: %w", err)
	}
	return path, nil
}

// FindByID loads one scan.
func (r *ScanRepository) FindByID(id string) (*scan.Scan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.load(id)
}

// FindAll loads every stored scan, newest first.
func (r *ScanRepository) FindAll() ([]*scan.Scan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, err := os.ReadDir(r.scansDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*scan.Scan{}, nil
		}
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}

	result := make([]*scan.Scan, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sc, err := r.load(entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to load scan %s: %w", entry.Name(), err)
		}
		result = append(result, sc)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt().After(result[j].StartedAt())
	})
	return result, nil
}

// Delete removes a scan directory including its artifacts.
func (r *ScanRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dir, err := security.ResolveWithin(r.scansDir, id)
	if err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Join(dir, scanFileName)); os.IsNotExist(err) {
		return sharedErrors.ErrScanNotFound
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete scan: %w", err)
	}
	return nil
}

func (r *ScanRepository) load(id string) (*scan.Scan, error) {
	path, err := security.ResolveWithin(r.scansDir, id, scanFileName)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, sharedErrors.ErrScanNotFound
		}
		return nil, fmt.Errorf("failed to read scan: %w", err)
	}

	var dto scanDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("%w: %v", sharedErrors.ErrInvalidData, err)
	}
	return fromDTO(dto)
}

// DTO conversion

func toDTO(sc *scan.Scan) scanDTO {
	info := sc.DomainInfo()
	dto := scanDTO{
		ID:     sc.ID(),
		Server: sc.Server(),
		Domain: sc.Domain(),
		DomainInfo: domainInfoDTO{
			DomainName:        info.DomainName,
			DistinguishedName: info.DistinguishedName,
			BaseDN:            info.BaseDN,
			MinPwdLength:      info.MinPwdLength,
		},
		Status:    string(sc.Status()),
		Error:     sc.Error(),
		Stats:     sc.Statistics(),
		Artifacts: sc.Artifacts(),
	}

	if !sc.StartedAt().IsZero() {
		dto.StartedAt = sc.StartedAt().Format(time.RFC3339Nano)
	}
	if !sc.CompletedAt().IsZero() {
		dto.CompletedAt = sc.CompletedAt().Format(time.RFC3339Nano)
	}

	findings := sc.Findings()
	dto.Findings = make([]findingDTO, 0, len(findings))
	for _, f := range findings {
		dto.Findings = append(dto.Findings, findingToDTO(f))
	}
	return dto
}

func fromDTO(dto scanDTO) (*scan.Scan, error) {
	var startedAt, completedAt time.Time
	var err error

	if dto.StartedAt != "" {
		startedAt, err = time.Parse(time.RFC3339Nano, dto.StartedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse start time: %w", err)
		}
	}
	if dto.CompletedAt != "" {
		completedAt, err = time.Parse(time.RFC3339Nano, dto.CompletedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse completion time: %w", err)
		}
	}

	findings := make([]audit.Finding, 0, len(dto.Findings))
	for _, f := range dto.Findings {
		finding, err := findingFromDTO(f)
		if err != nil {
			return nil, err
		}
		findings = append(findings, finding)
	}

	info := directory.DomainInfo{
		DomainName:        dto.DomainInfo.DomainName,
		DistinguishedName: dto.DomainInfo.DistinguishedName,
		BaseDN:            dto.DomainInfo.BaseDN,
		MinPwdLength:      dto.DomainInfo.MinPwdLength,
	}

	return scan.Reconstruct(dto.ID, dto.Server, dto.Domain, info,
		startedAt, completedAt, scan.Status(dto.Status), dto.Error,
		findings, dto.Stats, dto.Artifacts), nil
}

func findingToDTO(f audit.Finding) findingDTO {
	items := make([]affectedItemDTO, 0, len(f.AffectedItems))
	for _, item := range f.AffectedItems {
		items = append(items, itemToDTO(item))
	}
	return findingDTO{
		Severity:       string(f.Severity),
		Title:          f.Title,
		Description:    f.Description,
		CVE:            f.CVE,
		AffectedItems:  items,
		Recommendation: f.Recommendation,
	}
}

func findingFromDTO(dto findingDTO) (audit.Finding, error) {
	severity, err := audit.ParseSeverity(dto.Severity)
	if err != nil {
		return audit.Finding{}, err
	}
	items := make([]audit.AffectedItem, 0, len(dto.AffectedItems))
	for _, item := range dto.AffectedItems {
		decoded, err := itemFromDTO(item)
		if err != nil {
			return audit.Finding{}, err
		}
		items = append(items, decoded)
	}
	if len(items) == 0 {
		items = nil
	}
	return audit.Finding{
		Severity:       severity,
		Title:          dto.Title,
		Description:    dto.Description,
		CVE:            dto.CVE,
		AffectedItems:  items,
		Recommendation: dto.Recommendation,
	}, nil
}

func itemToDTO(item audit.AffectedItem) affectedItemDTO {
	dto := affectedItemDTO{Kind: string(item.Kind())}
	switch v := item.(type) {
	case audit.UserStatus:
		dto.Username = v.Username
		dto.LastLogon = v.LastLogon
		dto.Status = v.Status
	case audit.PrivilegedMember:
		dto.Username = v.Username
		dto.UserDN = v.UserDN
		dto.Group = v.Group
	case audit.PolicyGap:
		dto.Policy = v.Policy
		dto.Current = v.Current
		dto.Recommended = v.Recommended
	case audit.ServerRef:
		dto.Server = v.Server
	case audit.DNRef:
		dto.DN = v.DN
	case audit.GenericRecord:
		dto.Record = map[string]string(v)
	}
	return dto
}

func itemFromDTO(dto affectedItemDTO) (audit.AffectedItem, error) {
	switch audit.ItemKind(dto.Kind) {
	case audit.ItemUserStatus:
		return audit.UserStatus{Username: dto.Username, LastLogon: dto.LastLogon, Status: dto.Status}, nil
	case audit.ItemPrivilegedMember:
		return audit.PrivilegedMember{Username: dto.Username, UserDN: dto.UserDN, Group: dto.Group}, nil
	case audit.ItemPolicyGap:
		return audit.PolicyGap{Policy: dto.Policy, Current: dto.Current, Recommended: dto.Recommended}, nil
	case audit.ItemServerRef:
		return audit.ServerRef{Server: dto.Server}, nil
	case audit.ItemDNRef:
		return audit.DNRef{DN: dto.DN}, nil
	case audit.ItemGenericRecord:
		return audit.GenericRecord(dto.Record), nil
	}
	return nil, fmt.Errorf("%w: unknown affected item kind %q", sharedErrors.ErrInvalidData, dto.Kind)
}
