package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shalconnects/balanze-ledger-go/internal/domain"
	"github.com/shalconnects/balanze-ledger-go/internal/infra/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newPurchaseService(purchases *fakePurchaseStore, ledger *fakeLedgerStore) (*PurchaseService, *observability.Metrics, *fakeAuditLogger) {
	metrics := observability.NewMetrics()
	audit := &fakeAuditLogger{}
	svc := NewPurchaseService(
		purchases, ledger, &fakeAccountStore{},
		&fakeAttachmentStore{}, &fakeObjectStore{}, audit,
		newTestState(), metrics, zap.NewNop(),
	)
	return svc, metrics, audit
}

func purchasedInput() domain.PurchaseInput {
	return domain.PurchaseInput{
		ItemName:     "Mechanical keyboard",
		Category:     "Electronics",
		Price:        120,
		PurchaseDate: "2026-08-15",
		Status:       "purchased",
		Currency:     "USD",
		AccountID:    "acc-1",
	}
}

// ============================================================
// AddPurchase
// ============================================================

func TestAddPurchase_PurchasedCreatesBackingTransactionFirst(t *testing.T) {
	var txFields map[string]any
	var purchaseFields map[string]any
	ledger := &fakeLedgerStore{
		insertTransaction: func(_ context.Context, _ string, fields map[string]any) (*domain.Transaction, error) {
			require.Nil(t, purchaseFields, "transaction must be written before the purchase")
			txFields = fields
			return &domain.Transaction{ID: "tx-1", TransactionID: fields["transaction_id"].(string)}, nil
		},
	}
	purchases := &fakePurchaseStore{
		insertPurchase: func(_ context.Context, _ string, fields map[string]any) (*domain.Purchase, error) {
			purchaseFields = fields
			return &domain.Purchase{ID: "pur-1"}, nil
		},
	}
	svc, _, _ := newPurchaseService(purchases, ledger)

	_, err := svc.AddPurchase(context.Background(), "user-1", purchasedInput())
	require.NoError(t, err)

	require.NotNil(t, txFields)
	assert.Equal(t, "expense", txFields["type"])
	assert.Equal(t, 120.0, txFields["amount"])
	assert.Equal(t, []string{"purchase"}, txFields["tags"])

	// The purchase row carries the transaction's human id, not its
	// primary key.
	assert.Equal(t, txFields["transaction_id"], purchaseFields["transaction_id"])
	assert.Regexp(t, `^[A-Z][0-9]{8}$`, purchaseFields["transaction_id"])
}

func TestAddPurchase_InsertFailureCompensatesTransaction(t *testing.T) {
	var deletedTxID string
	ledger := &fakeLedgerStore{
		insertTransaction: func(_ context.Context, _ string, fields map[string]any) (*domain.Transaction, error) {
			return &domain.Transaction{ID: "tx-backing", TransactionID: fields["transaction_id"].(string)}, nil
		},
		deleteTransaction: func(_ context.Context, _, id string) error {
			deletedTxID = id
			return nil
		},
	}
	purchases := &fakePurchaseStore{
		insertPurchase: func(_ context.Context, _ string, _ map[string]any) (*domain.Purchase, error) {
			return nil, errors.New("purchases insert failed")
		},
	}
	svc, metrics, _ := newPurchaseService(purchases, ledger)

	_, err := svc.AddPurchase(context.Background(), "user-1", purchasedInput())
	require.Error(t, err)

	// The backing expense is deleted by primary key.
	assert.Equal(t, "tx-backing", deletedTxID)
	assert.Equal(t, 1.0, metrics.CompensationCount("purchase"))
}

func TestAddPurchase_PlannedWritesNoTransaction(t *testing.T) {
	ledger := &fakeLedgerStore{
		insertTransaction: func(_ context.Context, _ string, _ map[string]any) (*domain.Transaction, error) {
			t.Fatal("planned purchases must not create a transaction")
			return nil, nil
		},
	}
	svc, _, _ := newPurchaseService(&fakePurchaseStore{}, ledger)

	input := purchasedInput()
	input.Status = "planned"
	_, err := svc.AddPurchase(context.Background(), "user-1", input)
	assert.NoError(t, err)
}

func TestAddPurchase_ExcludedFromCalculationWritesNoTransaction(t *testing.T) {
	var purchaseFields map[string]any
	ledger := &fakeLedgerStore{
		insertTransaction: func(_ context.Context, _ string, _ map[string]any) (*domain.Transaction, error) {
			t.Fatal("excluded purchases must not create a transaction")
			return nil, nil
		},
	}
	purchases := &fakePurchaseStore{
		insertPurchase: func(_ context.Context, _ string, fields map[string]any) (*domain.Purchase, error) {
			purchaseFields = fields
			return &domain.Purchase{ID: "pur-1"}, nil
		},
	}
	svc, _, _ := newPurchaseService(purchases, ledger)

	input := purchasedInput()
	input.ExcludeFromCalculation = true
	_, err := svc.AddPurchase(context.Background(), "user-1", input)
	require.NoError(t, err)
	assert.NotContains(t, purchaseFields, "transaction_id")
}

func TestAddPurchase_PurchasedWithoutAccountRejected(t *testing.T) {
	svc, _, _ := newPurchaseService(&fakePurchaseStore{}, &fakeLedgerStore{})

	input := purchasedInput()
	input.AccountID = ""
	_, err := svc.AddPurchase(context.Background(), "user-1", input)

	var validation *domain.ErrValidation
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "account_id", validation.Field)
}

func TestAddPurchase_Validation(t *testing.T) {
	svc, _, _ := newPurchaseService(&fakePurchaseStore{}, &fakeLedgerStore{})

	cases := []struct {
		name   string
		mutate func(*domain.PurchaseInput)
	}{
		{"missing item name", func(in *domain.PurchaseInput) { in.ItemName = "" }},
		{"negative price", func(in *domain.PurchaseInput) { in.Price = -1 }},
		{"bad status", func(in *domain.PurchaseInput) { in.Status = "wishlist" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := purchasedInput()
			tc.mutate(&input)
			_, err := svc.AddPurchase(context.Background(), "user-1", input)
			var validation *domain.ErrValidation
			assert.ErrorAs(t, err, &validation)
		})
	}
}

// ============================================================
// UpdatePurchase
// ============================================================

func TestUpdatePurchase_PlannedToPurchasedGainsTransaction(t *testing.T) {
	var txFields map[string]any
	var updateFields map[string]any
	ledger := &fakeLedgerStore{
		insertTransaction: func(_ context.Context, _ string, fields map[string]any) (*domain.Transaction, error) {
			txFields = fields
			return &domain.Transaction{ID: "tx-1"}, nil
		},
	}
	purchases := &fakePurchaseStore{
		getPurchase: func(_ context.Context, _, id string) (*domain.Purchase, error) {
			return &domain.Purchase{
				ID: id, ItemName: "Desk lamp", Category: "Home",
				Price: 35, PurchaseDate: "2026-08-10",
				Status: "planned", AccountID: "acc-1",
			}, nil
		},
		updatePurchase: func(_ context.Context, _, _ string, fields map[string]any) error {
			updateFields = fields
			return nil
		},
	}
	svc, _, _ := newPurchaseService(purchases, ledger)

	status := "purchased"
	newPrice := 32.0
	err := svc.UpdatePurchase(context.Background(), "user-1", "pur-1", domain.PurchaseUpdate{
		Status: &status,
		Price:  &newPrice,
	})
	require.NoError(t, err)

	// Edited values win over stored ones in the backing transaction.
	require.NotNil(t, txFields)
	assert.Equal(t, 32.0, txFields["amount"])
	assert.Equal(t, "Desk lamp", txFields["description"])
	assert.Equal(t, "acc-1", txFields["account_id"])

	assert.Regexp(t, `^[A-Z][0-9]{8}$`, updateFields["transaction_id"])
}

func TestUpdatePurchase_MirrorsOntoLinkedTransaction(t *testing.T) {
	linkedID := "C00000007"
	var mirroredID string
	var mirror map[string]any
	ledger := &fakeLedgerStore{
		updateByHumanID: func(_ context.Context, _, humanID string, fields map[string]any) error {
			mirroredID = humanID
			mirror = fields
			return nil
		},
	}
	purchases := &fakePurchaseStore{
		getPurchase: func(_ context.Context, _, id string) (*domain.Purchase, error) {
			return &domain.Purchase{ID: id, Status: "purchased", TransactionID: &linkedID}, nil
		},
	}
	svc, _, _ := newPurchaseService(purchases, ledger)

	newPrice := 99.0
	newName := "Standing desk"
	err := svc.UpdatePurchase(context.Background(), "user-1", "pur-1", domain.PurchaseUpdate{
		Price:    &newPrice,
		ItemName: &newName,
	})
	require.NoError(t, err)

	assert.Equal(t, linkedID, mirroredID)
	assert.Equal(t, 99.0, mirror["amount"])
	assert.Equal(t, "Standing desk", mirror["description"])
}

func TestUpdatePurchase_MirrorFailureDoesNotFailEdit(t *testing.T) {
	linkedID := "C00000007"
	ledger := &fakeLedgerStore{
		updateByHumanID: func(_ context.Context, _, _ string, _ map[string]any) error {
			return errors.New("mirror patch failed")
		},
	}
	purchases := &fakePurchaseStore{
		getPurchase: func(_ context.Context, _, id string) (*domain.Purchase, error) {
			return &domain.Purchase{ID: id, Status: "purchased", TransactionID: &linkedID}, nil
		},
	}
	svc, _, _ := newPurchaseService(purchases, ledger)

	newPrice := 99.0
	err := svc.UpdatePurchase(context.Background(), "user-1", "pur-1", domain.PurchaseUpdate{Price: &newPrice})
	assert.NoError(t, err)
}

func TestUpdatePurchase_NoFieldsRejected(t *testing.T) {
	svc, _, _ := newPurchaseService(&fakePurchaseStore{}, &fakeLedgerStore{})

	err := svc.UpdatePurchase(context.Background(), "user-1", "pur-1", domain.PurchaseUpdate{})
	var validation *domain.ErrValidation
	assert.ErrorAs(t, err, &validation)
}

// ============================================================
// DeletePurchase
// ============================================================

func TestDeletePurchase_LinkedDeletesTransactionByHumanID(t *testing.T) {
	linkedID := "D00000009"
	var deletedHumanID string
	ledger := &fakeLedgerStore{
		deleteByHumanID: func(_ context.Context, _, humanID string) error {
			deletedHumanID = humanID
			return nil
		},
	}
	purchases := &fakePurchaseStore{
		getPurchase: func(_ context.Context, _, id string) (*domain.Purchase, error) {
			return &domain.Purchase{ID: id, ItemName: "Monitor", TransactionID: &linkedID}, nil
		},
	}
	svc, _, audit := newPurchaseService(purchases, ledger)

	err := svc.DeletePurchase(context.Background(), "user-1", "pur-1")
	require.NoError(t, err)
	assert.Equal(t, linkedID, deletedHumanID)

	require.Len(t, audit.entries, 1)
	assert.Equal(t, domain.ActivityPurchaseDeleted, audit.entries[0].ActivityType)
}

func TestDeletePurchase_UnlinkedTouchesNoTransaction(t *testing.T) {
	ledger := &fakeLedgerStore{
		deleteByHumanID: func(_ context.Context, _, _ string) error {
			t.Fatal("unlinked purchase delete must not touch the ledger")
			return nil
		},
	}
	purchases := &fakePurchaseStore{
		getPurchase: func(_ context.Context, _, id string) (*domain.Purchase, error) {
			return &domain.Purchase{ID: id, ItemName: "Notebook"}, nil
		},
	}
	svc, _, _ := newPurchaseService(purchases, ledger)

	err := svc.DeletePurchase(context.Background(), "user-1", "pur-1")
	assert.NoError(t, err)
}

func TestDeletePurchase_TransactionDeleteFailureIsSwallowed(t *testing.T) {
	linkedID := "D00000009"
	ledger := &fakeLedgerStore{
		deleteByHumanID: func(_ context.Context, _, _ string) error {
			return errors.New("ledger delete failed")
		},
	}
	purchases := &fakePurchaseStore{
		getPurchase: func(_ context.Context, _, id string) (*domain.Purchase, error) {
			return &domain.Purchase{ID: id, TransactionID: &linkedID}, nil
		},
	}
	svc, _, _ := newPurchaseService(purchases, ledger)

	err := svc.DeletePurchase(context.Background(), "user-1", "pur-1")
	assert.NoError(t, err)
}

// ============================================================
// Attachments
// ============================================================

func TestUploadAttachment_RejectsOversizedFile(t *testing.T) {
	svc, _, _ := newPurchaseService(&fakePurchaseStore{}, &fakeLedgerStore{})

	_, err := svc.UploadAttachment(context.Background(), "user-1", "pur-1", domain.AttachmentInput{
		FileName: "receipt.pdf",
		MimeType: "application/pdf",
		Data:     make([]byte, maxAttachmentSize+1),
	})

	var validation *domain.ErrValidation
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "file exceeds the 5MB limit", validation.Message)
}

func TestUploadAttachment_RejectsDisallowedExtension(t *testing.T) {
	svc, _, _ := newPurchaseService(&fakePurchaseStore{}, &fakeLedgerStore{})

	_, err := svc.UploadAttachment(context.Background(), "user-1", "pur-1", domain.AttachmentInput{
		FileName: "payload.exe",
		MimeType: "application/octet-stream",
		Data:     []byte{0x4d, 0x5a},
	})

	var validation *domain.ErrValidation
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "file type not allowed", validation.Message)
}

func TestUploadAttachment_InsertFailureRemovesStoredObject(t *testing.T) {
	var uploadedPath, removedPath string
	objects := &fakeObjectStore{
		upload: func(_ context.Context, path, _ string, _ []byte) error {
			uploadedPath = path
			return nil
		},
		remove: func(_ context.Context, path string) error {
			removedPath = path
			return nil
		},
	}
	svc := NewPurchaseService(
		&fakePurchaseStore{}, &fakeLedgerStore{}, &fakeAccountStore{},
		&fakeAttachmentStore{
			insertAttachment: func(_ context.Context, _ map[string]any) (*domain.PurchaseAttachment, error) {
				return nil, errors.New("attachments insert failed")
			},
		},
		objects, &fakeAuditLogger{},
		newTestState(), observability.NewMetrics(), zap.NewNop(),
	)

	_, err := svc.UploadAttachment(context.Background(), "user-1", "pur-1", domain.AttachmentInput{
		FileName: "receipt.png",
		MimeType: "image/png",
		Data:     []byte("png-bytes"),
	})
	require.Error(t, err)
	assert.Equal(t, uploadedPath, removedPath)
	assert.Contains(t, uploadedPath, "pur-1/")
}
