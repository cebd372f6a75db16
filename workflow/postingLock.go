package workflow

import (
	"fmt"

	"gorm.io/gorm"
)

// AcquireParentPostingLock serializes serialized-stock posting per parent
// variant across instances using MySQL advisory locks.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same
// *gorm.DB that will do the posting transaction.
func AcquireParentPostingLock(tx *gorm.DB, parentId int) error {
	lockName := fmt.Sprintf("variant-posting:%d", parentId)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire posting lock for parent_variant_id=%d", parentId)
	}
	return nil
}

func ReleaseParentPostingLock(tx *gorm.DB, parentId int) {
	lockName := fmt.Sprintf("variant-posting:%d", parentId)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}
