package services

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pushit/marketplace/internal/models"
	"go.uber.org/zap"
)

type BrandReviewStore interface {
	ListBrandsAwaitingCheck(ctx context.Context, cutoff time.Time, limit int) ([]models.Brand, error)
	MarkBrandChecked(ctx context.Context, userID uuid.UUID) error
	VerifyPendingBrand(ctx context.Context, userID uuid.UUID) (bool, error)
}

// Brand check flags.
const (
	BrandFlagNoWebsite        = "no_website"
	BrandFlagBadWebsite       = "invalid_website"
	BrandFlagUncommonTLD      = "uncommon_tld"
	BrandFlagSuspiciousName   = "suspicious_company_name"
	BrandFlagNameLength       = "unusual_company_name_length"
	BrandFlagUncommonIndustry = "uncommon_industry"
	BrandFlagSuspiciousText   = "suspicious_description"
	BrandFlagFreeEmail        = "free_email_domain"
	BrandFlagBadEmail         = "invalid_contact_email"
)

const (
	brandPassConfidence        = 0.7
	minBrandDescriptionLength  = 20
	goodBrandDescriptionLength = 50
)

var (
	domainRe = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)+$`)

	suspiciousNameRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^(test|demo|example|fake|sample)\b`),
		regexp.MustCompile(`\d{10,}`),
	}
	suspiciousTextRe = regexp.MustCompile(`(?i)\b(test|demo|example|lorem ipsum|asdf)\b`)

	commonTLDs = []string{".com", ".net", ".org", ".io", ".co", ".app", ".dev", ".tech", ".ai", ".ng", ".gh", ".africa"}

	commonIndustries = []string{
		"fashion", "tech", "food", "beauty", "fitness", "travel", "finance", "health",
		"education", "entertainment", "sports", "automotive", "real estate", "retail", "e-commerce",
	}

	freeEmailDomains = map[string]bool{
		"gmail.com": true, "yahoo.com": true, "hotmail.com": true, "outlook.com": true,
		"icloud.com": true, "aol.com": true, "proton.me": true, "protonmail.com": true,
		"mail.com": true, "gmx.com": true, "yandex.com": true,
	}
)

// BrandCheck is the outcome of scoring a brand profile.
type BrandCheck struct {
	Passed     bool     `json:"passed"`
	Confidence float64  `json:"confidence"`
	Flags      []string `json:"flags"`
}

type brandScore struct {
	total, max float64
	flags      []string
}

func (s *brandScore) add(score float64, flags ...string) {
	s.total += score
	s.max++
	s.flags = append(s.flags, flags...)
}

// CheckBrand scores a brand profile and the account email it signed up
// with. Company name, industry and description are required; the website
// counts only when present. A brand passes when every required field is
// usable and the average score reaches 0.7.
func CheckBrand(b *models.Brand, email string) BrandCheck {
	var sc brandScore

	nameOK, score, flags := checkCompanyName(b.CompanyName)
	sc.add(score, flags...)

	industryOK, score, flags := checkIndustry(deref(b.Industry))
	sc.add(score, flags...)

	descOK, score, flags := checkDescription(deref(b.Description))
	sc.add(score, flags...)

	if website := deref(b.Website); website != "" {
		_, score, flags = checkWebsite(website)
		sc.add(score, flags...)
	} else {
		sc.flags = append(sc.flags, BrandFlagNoWebsite)
	}

	contactOK, score, flags := checkContactEmail(email)
	sc.add(score, flags...)

	check := BrandCheck{Flags: sc.flags}
	if check.Flags == nil {
		check.Flags = []string{}
	}
	if sc.max > 0 {
		check.Confidence = sc.total / sc.max
	}
	check.Passed = nameOK && industryOK && descOK && contactOK && check.Confidence >= brandPassConfidence
	return check
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func checkCompanyName(name string) (bool, float64, []string) {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	if n < 2 {
		return false, 0.2, nil
	}
	for _, re := range suspiciousNameRes {
		if re.MatchString(name) {
			return true, 0.5, []string{BrandFlagSuspiciousName}
		}
	}
	if n >= 3 && n <= 100 {
		return true, 1, nil
	}
	return true, 0.8, []string{BrandFlagNameLength}
}

func checkIndustry(industry string) (bool, float64, []string) {
	if utf8.RuneCountInString(industry) < 2 {
		return false, 0, nil
	}
	lower := strings.ToLower(industry)
	for _, common := range commonIndustries {
		if strings.Contains(lower, common) {
			return true, 1, nil
		}
	}
	return true, 0.7, []string{BrandFlagUncommonIndustry}
}

func checkDescription(desc string) (bool, float64, []string) {
	n := utf8.RuneCountInString(desc)
	if n < minBrandDescriptionLength {
		return false, 0.3, nil
	}
	var flags []string
	if suspiciousTextRe.MatchString(desc) {
		flags = append(flags, BrandFlagSuspiciousText)
	}
	switch {
	case n >= goodBrandDescriptionLength:
		return true, 1, flags
	case n >= 30:
		return true, 0.8, flags
	}
	return true, 0.6, flags
}

func checkWebsite(website string) (bool, float64, []string) {
	u, err := url.Parse(website)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false, 0.3, []string{BrandFlagBadWebsite}
	}
	host := strings.ToLower(u.Hostname())
	if !domainRe.MatchString(host) {
		return false, 0.3, []string{BrandFlagBadWebsite}
	}
	for _, tld := range commonTLDs {
		if strings.HasSuffix(host, tld) {
			return true, 0.8, nil
		}
	}
	return true, 0.6, []string{BrandFlagUncommonTLD}
}

func checkContactEmail(email string) (bool, float64, []string) {
	at := strings.LastIndexByte(email, '@')
	if at < 1 || !strings.Contains(email[at+1:], ".") {
		return false, 0, []string{BrandFlagBadEmail}
	}
	if freeEmailDomains[strings.ToLower(email[at+1:])] {
		return true, 0.6, []string{BrandFlagFreeEmail}
	}
	return true, 1, nil
}

// BrandReviewService scores new brand accounts a few minutes after signup
// and verifies those that pass. The rest wait for an admin.
type BrandReviewService struct {
	brands BrandReviewStore
	users  UserGetter
	notify Notifier
	audit  AuditLogger
	delay  time.Duration
	log    *zap.Logger
}

func NewBrandReviewService(brands BrandReviewStore, users UserGetter, notifier Notifier, audit AuditLogger, delay time.Duration, log *zap.Logger) *BrandReviewService {
	return &BrandReviewService{
		brands: brands,
		users:  users,
		notify: notifier,
		audit:  audit,
		delay:  delay,
		log:    log,
	}
}

// BrandSweep counts what one ProcessPending pass did.
type BrandSweep struct {
	Checked  int
	Verified int
}

// ProcessPending scores up to limit brands that have waited at least the
// configured delay.
func (s *BrandReviewService) ProcessPending(ctx context.Context, limit int) (BrandSweep, error) {
	var sweep BrandSweep
	pending, err := s.brands.ListBrandsAwaitingCheck(ctx, time.Now().Add(-s.delay), limit)
	if err != nil {
		return sweep, err
	}

	for i := range pending {
		if ctx.Err() != nil {
			return sweep, ctx.Err()
		}
		b := &pending[i]
		user, err := s.users.GetByID(ctx, b.UserID)
		if err != nil {
			s.log.Warn("brand check skipped", zap.String("brand_id", b.UserID.String()), zap.Error(err))
			continue
		}

		check := CheckBrand(b, user.Email)
		verified := false
		if check.Passed {
			verified, err = s.brands.VerifyPendingBrand(ctx, b.UserID)
		} else {
			err = s.brands.MarkBrandChecked(ctx, b.UserID)
		}
		if err != nil {
			return sweep, err
		}
		sweep.Checked++

		action := "brand_needs_review"
		if verified {
			sweep.Verified++
			action = "brand_auto_verified"
			notify(ctx, s.notify, s.log, b.UserID, models.NotifyAccountStatus,
				"Account verified",
				"Your brand account is verified. You can now fund and launch campaigns.",
				"/campaigns")
		}
		audit(ctx, s.audit, s.log, models.AuditLog{
			ActorType:  models.ActorSystem,
			Action:     action,
			EntityType: "brand",
			EntityID:   &b.UserID,
			Meta:       map[string]any{"confidence": check.Confidence, "flags": check.Flags},
		})
		s.log.Info("brand checked",
			zap.String("brand_id", b.UserID.String()),
			zap.String("company", b.CompanyName),
			zap.Float64("confidence", check.Confidence),
			zap.Bool("verified", verified),
			zap.Strings("flags", check.Flags))
	}
	return sweep, nil
}
