package ledger

import (
	"context"
	"slices"
	"strings"

	"github.com/agnivade/levenshtein"

	"glowbudget/internal/core"
	"glowbudget/internal/log"
	"glowbudget/internal/validate"
)

// suggestDistance is the largest edit distance reported as a near duplicate.
const suggestDistance = 2

func (s *Store) AddCategory(ctx context.Context, name string) error {
	if err := validate.ValidateCategory(name); err != nil {
		return err
	}
	err := s.apply(ctx, EventCategoriesChanged, func(d *draft) (string, error) {
		if d.settings.HasCategory(name) {
			return "", core.ErrCategoryExists
		}
		d.settings.Categories = append(d.settings.Categories, name)
		d.settingsDirty = true
		return "", nil
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Category added", log.FieldCategory, name)
	return nil
}

// RemoveCategory deletes name from the category list. It is rejected while
// any record still references the category.
func (s *Store) RemoveCategory(ctx context.Context, name string) error {
	err := s.apply(ctx, EventCategoriesChanged, func(d *draft) (string, error) {
		i := slices.Index(d.settings.Categories, name)
		if i < 0 {
			return "", core.ErrCategoryNotFound
		}
		if core.CategoriesInUse(d.records)[name] {
			return "", core.ErrCategoryInUse
		}
		d.settings.Categories = slices.Delete(d.settings.Categories, i, i+1)
		d.settingsDirty = true
		return "", nil
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Category removed", log.FieldCategory, name)
	return nil
}

// SuggestCategory returns an existing category that name is probably a
// misspelling of. Exact matches are not suggestions.
func (s *Store) SuggestCategory(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	categories := s.Settings().Categories
	if slices.Contains(categories, name) {
		return "", false
	}

	lower := strings.ToLower(name)
	best, bestDist := "", suggestDistance+1
	for _, c := range categories {
		d := levenshtein.ComputeDistance(lower, strings.ToLower(c))
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, best != ""
}

func (s *Store) SetTheme(ctx context.Context, theme string) error {
	t := core.ParseTheme(theme)
	return s.updateSettings(ctx, "theme", func(st *core.Settings) error {
		st.Theme = t
		return nil
	})
}

func (s *Store) SetDisplayCurrency(ctx context.Context, code string) error {
	c, err := core.ParseCurrency(code)
	if err != nil {
		return err
	}
	return s.updateSettings(ctx, "displayCurrency", func(st *core.Settings) error {
		st.DisplayCurrency = c
		return nil
	})
}

// SetRate stores how many base units one unit of code is worth. The base
// currency has no rate.
func (s *Store) SetRate(ctx context.Context, code, text string) error {
	c, err := core.ParseCurrency(code)
	if err != nil || c == core.BaseCurrency {
		return core.ErrUnknownCurrency
	}
	rate, err := validate.ValidateRate(text)
	if err != nil {
		return err
	}
	return s.updateSettings(ctx, "rates", func(st *core.Settings) error {
		st.Rates[c] = rate
		return nil
	})
}

// SetMonthlyCap stores the cap. An empty text or zero disables it.
func (s *Store) SetMonthlyCap(ctx context.Context, text string) error {
	capValue, err := validate.ValidateCap(strings.TrimSpace(text))
	if err != nil {
		return err
	}
	return s.updateSettings(ctx, "monthlyCap", func(st *core.Settings) error {
		st.MonthlyCap = capValue
		return nil
	})
}

func (s *Store) updateSettings(ctx context.Context, setting string, fn func(st *core.Settings) error) error {
	err := s.apply(ctx, EventSettingsChanged, func(d *draft) (string, error) {
		if err := fn(&d.settings); err != nil {
			return "", err
		}
		d.settingsDirty = true
		return "", nil
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Setting updated", log.FieldSetting, setting)
	return nil
}
