package service

import (
	"context"
	"time"

	"github.com/cwrk-planet/watch-buddy/internal/domain"
	"github.com/cwrk-planet/watch-buddy/internal/repository"
)

// MemberService keeps the durable membership records. Live presence lives in
// the presence registry; this table may lag it after a disconnect.
type MemberService struct {
	memberRepo repository.MemberRepository
	now        func() time.Time
}

func NewMemberService(memberRepo repository.MemberRepository) *MemberService {
	return &MemberService{
		memberRepo: memberRepo,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemberService) Join(ctx context.Context, roomID domain.RoomID, m domain.Member) error {
	err := s.memberRepo.Upsert(ctx, domain.MemberRecord{
		RoomID:   roomID,
		Member:   m,
		JoinedAt: s.now(),
	})
	if err != nil {
		return mapRoomErr("memberRepo.Upsert", err)
	}
	return nil
}

func (s *MemberService) Leave(ctx context.Context, roomID domain.RoomID, identity domain.Identity) error {
	if err := s.memberRepo.Delete(ctx, roomID, identity); err != nil {
		return domain.Persistence("memberRepo.Delete", err)
	}
	return nil
}

func (s *MemberService) List(ctx context.Context, roomID domain.RoomID) ([]domain.MemberRecord, error) {
	out, err := s.memberRepo.List(ctx, roomID)
	if err != nil {
		return nil, domain.Persistence("memberRepo.List", err)
	}
	return out, nil
}
