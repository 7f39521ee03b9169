package catalog

import (
	"context"
	"slices"

	"github.com/joao-fontenele/stationery-storefront/internal/domain"
)

// StaticSource serves a product list held in memory.
type StaticSource struct {
	products []domain.Product
}

func NewStaticSource(products []domain.Product) *StaticSource {
	return &StaticSource{products: slices.Clone(products)}
}

// SeedSource serves the storefront's launch catalog.
func SeedSource() *StaticSource {
	return NewStaticSource(Seed())
}

func (s *StaticSource) List(ctx context.Context) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slices.Clone(s.products), nil
}

func (s *StaticSource) Get(ctx context.Context, id int64) (*domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, p := range s.products {
		if p.ID == id {
			return &p, nil
		}
	}

	return nil, nil
}

// Seed returns the launch catalog. Prices are in baisa.
func Seed() []domain.Product {
	return []domain.Product{
		{
			ID: 1,
			Name: domain.LocalizedText{
				EN: "A4 Size paper",
				AR: "ورق مقاس A4",
			},
			Description: domain.LocalizedText{
				EN: "High-quality A4 paper for everyday printing and copying needs. 80gsm, 500 sheets per pack.",
				AR: "ورق A4 عالي الجودة لاحتياجات الطباعة والنسخ اليومية. 80 جرام، 500 ورقة في العبوة.",
			},
			Price:      4200,
			Category:   domain.CategoryPaper,
			Image:      "/images/products/a4-paper.jpg",
			Stock:      500,
			IsFeatured: true,
		},
		{
			ID: 2,
			Name: domain.LocalizedText{
				EN: "Black Box file",
				AR: "ملف صندوق أسود",
			},
			Description: domain.LocalizedText{
				EN: "Durable box file for document storage and organization. Includes label holder and metal finger ring.",
				AR: "ملف صندوق متين لتخزين وتنظيم المستندات. يشمل حامل ملصق وحلقة معدنية للأصابع.",
			},
			Price:      6000,
			Category:   domain.CategoryFiling,
			Image:      "/images/products/box-file.jpg",
			Stock:      200,
			IsFeatured: true,
		},
		{
			ID: 3,
			Name: domain.LocalizedText{
				EN: "Business Cards with Lamination",
				AR: "بطاقات عمل مع تغليف",
			},
			Description: domain.LocalizedText{
				EN: "Custom designed business cards with lamination - box of 100 pcs. Premium 350gsm card with glossy finish.",
				AR: "بطاقات عمل مصممة حسب الطلب مع تغليف - علبة من 100 قطعة. بطاقة فاخرة 350 جرام مع لمسة نهائية لامعة.",
			},
			Price:      6500,
			Category:   domain.CategoryPrinting,
			Image:      "/images/products/business-cards.jpg",
			Stock:      50,
			IsFeatured: false,
		},
		{
			ID: 4,
			Name: domain.LocalizedText{
				EN: "Classic Highlighter (6 pieces)",
				AR: "قلم تحديد كلاسيكي (6 قطع)",
			},
			Description: domain.LocalizedText{
				EN: "Set of 6 highlighters in assorted colors for marking important text. Chisel tip for broad or fine highlighting.",
				AR: "مجموعة من 6 أقلام تحديد بألوان متنوعة لتمييز النص المهم. طرف إزميل للتمييز العريض أو الدقيق.",
			},
			Price:      1000,
			Category:   domain.CategoryPens,
			Image:      "/images/products/highlighter.jpg",
			Stock:      150,
			IsFeatured: true,
		},
		{
			ID: 5,
			Name: domain.LocalizedText{
				EN: "Sticky Notes Assorted Colors",
				AR: "ملاحظات لاصقة بألوان متنوعة",
			},
			Description: domain.LocalizedText{
				EN: "Pack of 5 sticky note pads in assorted colors. 100 sheets per pad, perfect for reminders and quick notes.",
				AR: "عبوة من 5 دفاتر ملاحظات لاصقة بألوان متنوعة. 100 ورقة لكل دفتر، مثالية للتذكير والملاحظات السريعة.",
			},
			Price:      2500,
			Category:   domain.CategoryOfficeSupplies,
			Image:      "/images/products/sticky-notes.jpg",
			Stock:      200,
			IsFeatured: false,
		},
		{
			ID: 6,
			Name: domain.LocalizedText{
				EN: "Premium Ballpoint Pens (12 pack)",
				AR: "أقلام حبر جاف فاخرة (12 قلم)",
			},
			Description: domain.LocalizedText{
				EN: "Set of 12 premium ballpoint pens with smooth writing experience. Blue ink, medium point.",
				AR: "مجموعة من 12 قلم حبر جاف فاخر مع تجربة كتابة سلسة. حبر أزرق، نقطة متوسطة.",
			},
			Price:      3750,
			Category:   domain.CategoryPens,
			Image:      "/images/products/ballpoint-pens.jpg",
			Stock:      300,
			IsFeatured: true,
		},
		{
			ID: 7,
			Name: domain.LocalizedText{
				EN: "Desk Organizer",
				AR: "منظم مكتب",
			},
			Description: domain.LocalizedText{
				EN: "Multi-compartment desk organizer for storing stationery and keeping your workspace tidy.",
				AR: "منظم مكتب متعدد الأقسام لتخزين القرطاسية والحفاظ على مساحة العمل الخاصة بك مرتبة.",
			},
			Price:      8900,
			Category:   domain.CategoryOfficeSupplies,
			Image:      "/images/products/desk-organizer.jpg",
			Stock:      75,
			IsFeatured: false,
		},
		{
			ID: 8,
			Name: domain.LocalizedText{
				EN: "A3 Drawing Paper",
				AR: "ورق رسم A3",
			},
			Description: domain.LocalizedText{
				EN: "High-quality A3 drawing paper, 120gsm. Perfect for sketching, drawing and art projects.",
				AR: "ورق رسم A3 عالي الجودة، 120 جرام. مثالي للرسم التخطيطي والرسم ومشاريع الفن.",
			},
			Price:      5500,
			Category:   domain.CategoryPaper,
			Image:      "/images/products/a3-paper.jpg",
			Stock:      100,
			IsFeatured: false,
		},
	}
}
