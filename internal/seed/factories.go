// Package seed provides helpers to create demo data for the application database.
// These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"inkwell/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DemoPassword is the password of every seeded user.
const DemoPassword = "password123"

var tagPool = []string{
	"go", "databases", "devops", "frontend", "backend", "security", "testing",
	"career", "design", "cloud", "linux", "open-source", "performance", "books",
}

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by Seed and tests.
type Factory struct {
	db    *gorm.DB
	opts  Options
	faker *gofakeit.Faker
	r     *rand.Rand

	passwordHash string
}

// NewFactory creates a Factory bound to db. A zero opts.RandomSeed seeds from the clock.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := opts.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Factory{
		db:    db,
		opts:  opts,
		faker: gofakeit.New(seed),
		r:     rand.New(rand.NewSource(seed)), // #nosec G404
	}
}

func (f *Factory) hash() (string, error) {
	if f.passwordHash != "" {
		return f.passwordHash, nil
	}
	cost := f.opts.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), cost)
	if err != nil {
		return "", err
	}
	f.passwordHash = string(h)
	return f.passwordHash, nil
}

// username returns a fresh lower-case username that fits the 3..32 rule.
func (f *Factory) username(i int) string {
	base := strings.ToLower(f.faker.Username())
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return -1
	}, base)
	if len(base) < 3 {
		base = "writer"
	}
	if len(base) > 24 {
		base = base[:24]
	}
	return fmt.Sprintf("%s_%d", base, i)
}

// CreateUser persists a user with a profile. Optional overrides run before saving.
func (f *Factory) CreateUser(i int, overrides ...func(*models.User)) (*models.User, error) {
	hash, err := f.hash()
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Username: f.username(i),
		Password: hash,
		Profile: &models.Profile{
			Name: f.faker.Name(),
			Bio:  f.faker.Sentence(10),
		},
	}
	for _, override := range overrides {
		override(user)
	}
	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// backdate spreads CreatedAt over the last opts.MaxDays days.
func (f *Factory) backdate() time.Time {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	back := time.Duration(f.r.Intn(maxDays))*24*time.Hour +
		time.Duration(f.r.Intn(24))*time.Hour +
		time.Duration(f.r.Intn(60))*time.Minute
	return time.Now().Add(-back)
}

// tags picks up to three distinct tag rows from the shared pool.
func (f *Factory) tags() ([]models.Tag, error) {
	n := f.r.Intn(4)
	picked := make([]models.Tag, 0, n)
	for _, i := range f.r.Perm(len(tagPool))[:n] {
		tag := models.Tag{Name: tagPool[i]}
		if err := f.db.Where(models.Tag{Name: tag.Name}).FirstOrCreate(&tag).Error; err != nil {
			return nil, err
		}
		picked = append(picked, tag)
	}
	return picked, nil
}

// BuildPost returns an unsaved post by author. Roughly one in five is a draft.
func (f *Factory) BuildPost(author *models.User) *models.Post {
	created := f.backdate()
	return &models.Post{
		AuthorID:  author.ID,
		Title:     strings.TrimSuffix(f.faker.Sentence(f.r.Intn(6)+3), "."),
		Content:   f.faker.Paragraph(f.r.Intn(3)+1, f.r.Intn(4)+2, 12, "\n\n"),
		Published: f.r.Intn(5) != 0,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

// CreatePost persists a post by author with random tags.
func (f *Factory) CreatePost(author *models.User, overrides ...func(*models.Post)) (*models.Post, error) {
	post := f.BuildPost(author)
	tags, err := f.tags()
	if err != nil {
		return nil, err
	}
	post.Tags = tags
	for _, override := range overrides {
		override(post)
	}
	if err := f.db.Create(post).Error; err != nil {
		return nil, err
	}
	return post, nil
}

// CreateComment persists a comment by author on post.
func (f *Factory) CreateComment(author *models.User, post *models.Post) (*models.Comment, error) {
	comment := &models.Comment{
		PostID:   post.ID,
		AuthorID: author.ID,
		Content:  f.faker.Sentence(f.r.Intn(12) + 4),
	}
	if err := f.db.Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// Vote records an upvote by voter on post.
func (f *Factory) Vote(voter *models.User, post *models.Post) error {
	return f.db.Create(&models.Vote{PostID: post.ID, UserID: voter.ID, IsUpvote: true}).Error
}

// Follow records follower following target.
func (f *Factory) Follow(follower, target *models.User) error {
	return f.db.Create(&models.Follow{FollowerID: follower.Profile.ID, FollowingID: target.Profile.ID}).Error
}
